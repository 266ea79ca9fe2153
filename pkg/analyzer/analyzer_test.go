package analyzer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/menta2k/image-quality/pkg/pixel"
	"github.com/menta2k/image-quality/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8(128)
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return img
}

func perfectComposition() types.CompositionScore {
	return types.CompositionScore{Overall: 100}
}

func TestNew(t *testing.T) {
	analyzer := New()
	if analyzer == nil {
		t.Fatal("New() returned nil")
	}

	if analyzer.config.GoodThreshold != 60 {
		t.Errorf("Expected good threshold 60, got %d", analyzer.config.GoodThreshold)
	}
	if analyzer.config.Weights.Sharpness != 0.3 {
		t.Errorf("Expected sharpness weight 0.3, got %f", analyzer.config.Weights.Sharpness)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinImageSize = 200
	cfg.GoodThreshold = 80

	analyzer := NewWithConfig(cfg)
	if analyzer.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", analyzer.config.MinImageSize)
	}
	if analyzer.Config().GoodThreshold != 80 {
		t.Errorf("Expected good threshold 80, got %d", analyzer.Config().GoodThreshold)
	}
}

func TestAggregate(t *testing.T) {
	analyzer := New()

	tests := []struct {
		name        string
		metrics     types.MetricSet
		comp        types.CompositionScore
		wantScore   int
		wantGood    bool
		wantReasons []string
		wantTier    types.Tier
	}{
		{
			name:        "good standard image",
			metrics:     types.MetricSet{Brightness: 60, Contrast: 100, Sharpness: 100, ColorBalance: 100, NoiseLevel: 100},
			comp:        perfectComposition(),
			wantScore:   92,
			wantGood:    true,
			wantReasons: []string{"Good overall quality"},
			wantTier:    types.TierStandard,
		},
		{
			name:        "good tier",
			metrics:     types.MetricSet{Brightness: 75, Contrast: 100, Sharpness: 100, ColorBalance: 100, NoiseLevel: 100},
			comp:        perfectComposition(),
			wantScore:   95,
			wantGood:    true,
			wantReasons: []string{"Good overall quality"},
			wantTier:    types.TierGood,
		},
		{
			name:        "dark but otherwise fine",
			metrics:     types.MetricSet{Brightness: 10, Contrast: 100, Sharpness: 100, ColorBalance: 100, NoiseLevel: 100},
			comp:        perfectComposition(),
			wantScore:   82,
			wantGood:    true,
			wantReasons: []string{"Image is too dark"},
			wantTier:    types.TierBad,
		},
		{
			name:        "overexposed",
			metrics:     types.MetricSet{Brightness: 90, Contrast: 100, Sharpness: 100, ColorBalance: 100, NoiseLevel: 100},
			comp:        perfectComposition(),
			wantScore:   98,
			wantGood:    true,
			wantReasons: []string{"Image is overexposed"},
			wantTier:    types.TierGood,
		},
		{
			name:      "everything wrong",
			metrics:   types.MetricSet{},
			comp:      types.CompositionScore{},
			wantScore: 0,
			wantGood:  false,
			wantReasons: []string{
				"Image is too dark",
				"Low contrast",
				"Image is blurry",
				"Poor color balance",
				"Visible noise",
				"Weak composition",
			},
			wantTier: types.TierBad,
		},
		{
			name:        "unbounded inputs are clamped",
			metrics:     types.MetricSet{Brightness: 60, Contrast: 500, Sharpness: 1020, ColorBalance: 100, NoiseLevel: 100},
			comp:        perfectComposition(),
			wantScore:   92,
			wantGood:    true,
			wantReasons: []string{"Good overall quality"},
			wantTier:    types.TierStandard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, tier := analyzer.Aggregate(tt.metrics, tt.comp)
			if verdict.Score != tt.wantScore {
				t.Errorf("Expected score %d, got %d", tt.wantScore, verdict.Score)
			}
			if verdict.IsGood != tt.wantGood {
				t.Errorf("Expected isGood %v, got %v", tt.wantGood, verdict.IsGood)
			}
			if !reflect.DeepEqual(verdict.Reasons, tt.wantReasons) {
				t.Errorf("Expected reasons %v, got %v", tt.wantReasons, verdict.Reasons)
			}
			if tier != tt.wantTier {
				t.Errorf("Expected tier %s, got %s", tt.wantTier, tier)
			}
		})
	}
}

func TestAggregateThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GoodThreshold = 95
	analyzer := NewWithConfig(cfg)

	metrics := types.MetricSet{Brightness: 60, Contrast: 100, Sharpness: 100, ColorBalance: 100, NoiseLevel: 100}
	verdict, _ := analyzer.Aggregate(metrics, perfectComposition())
	if verdict.IsGood {
		t.Errorf("Expected score %d not to pass threshold 95", verdict.Score)
	}
	if len(verdict.Reasons) != 0 {
		t.Errorf("Expected no reasons for unremarkable image, got %v", verdict.Reasons)
	}
}

func TestAnalyzeBuffer(t *testing.T) {
	analyzer := New()

	if _, err := analyzer.AnalyzeBuffer(pixel.Buffer{}); !errors.Is(err, types.ErrEmptyBuffer) {
		t.Errorf("Expected ErrEmptyBuffer, got %v", err)
	}

	bad := pixel.Buffer{Pix: make([]byte, 10), Width: 2, Height: 2}
	if _, err := analyzer.AnalyzeBuffer(bad); !errors.Is(err, types.ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions, got %v", err)
	}

	result, err := analyzer.AnalyzeBuffer(pixel.FromImage(createTestImage(120, 80)))
	if err != nil {
		t.Fatalf("AnalyzeBuffer failed: %v", err)
	}
	if result.Score < 0 || result.Score > 100 {
		t.Errorf("Expected score in [0, 100], got %d", result.Score)
	}
	if result.Width != 120 || result.Height != 80 {
		t.Errorf("Expected 120x80, got %dx%d", result.Width, result.Height)
	}
	if len(result.Reasons) == 0 && result.IsGood {
		t.Error("Expected a good result to carry a reason")
	}
}

func TestAnalyzeImageDownscales(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDimension = 64
	analyzer := NewWithConfig(cfg)

	result, err := analyzer.AnalyzeImage(createTestImage(256, 128))
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if result.Width != 256 || result.Height != 128 {
		t.Errorf("Expected original dimensions 256x128, got %dx%d", result.Width, result.Height)
	}
	if result.Context.IsPortrait {
		t.Error("Expected landscape image not to be portrait")
	}
}

func TestAnalyzeImageScalesSubjectRegion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDimension = 100
	analyzer := NewWithConfig(cfg)

	img := image.NewRGBA(image.Rect(0, 0, 300, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			if x >= 100 && x < 200 && y >= 100 && y < 200 {
				img.Set(x, y, color.RGBA{240, 240, 240, 255})
			} else {
				img.Set(x, y, color.RGBA{20, 30, 40, 255})
			}
		}
	}

	result, err := analyzer.AnalyzeImage(img)
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	region := result.Context.SubjectRegion
	if region == nil {
		t.Fatal("Expected a subject region")
	}
	// 33px square at (33,33) on the 100px copy, scaled by 3
	if region.X != 99 || region.Y != 99 || region.Width != 99 || region.Height != 99 {
		t.Errorf("Expected region scaled to source coordinates, got %+v", region.Rectangle)
	}
}

func TestAnalyzeImageUniform(t *testing.T) {
	analyzer := New()
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	result, err := analyzer.AnalyzeImage(img)
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if !result.Context.IsHighKey || !result.Context.IsBlackAndWhite {
		t.Errorf("Expected white image to be high-key B&W, got %+v", result.Context)
	}
	if result.Quality != types.TierBad {
		t.Errorf("Expected featureless image to be Bad, got %s", result.Quality)
	}
}

// paintBuffer builds a buffer whose pixel at (x, y) is fn(x, y)
func paintBuffer(width, height int, fn func(x, y int) color.RGBA) pixel.Buffer {
	pix := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := fn(x, y)
			o := (y*width + x) * 4
			pix[o], pix[o+1], pix[o+2], pix[o+3] = c.R, c.G, c.B, 255
		}
	}
	return pixel.Buffer{Pix: pix, Width: width, Height: height}
}

func gray(v uint8) color.RGBA {
	return color.RGBA{v, v, v, 255}
}

// subjectStripes paints a 90x90 frame with a centred 30px square of 1px
// vertical stripes (lo, hi) over a uniform background
func subjectStripes(background, lo, hi uint8) pixel.Buffer {
	return paintBuffer(90, 90, func(x, y int) color.RGBA {
		if x >= 30 && x < 60 && y >= 30 && y < 60 {
			if x%2 == 1 {
				return gray(hi)
			}
			return gray(lo)
		}
		return gray(background)
	})
}

func TestFlatPortraitIsNotGood(t *testing.T) {
	analyzer := New()
	buf := paintBuffer(40, 80, func(int, int) color.RGBA { return gray(128) })

	result, err := analyzer.AnalyzeBuffer(buf)
	if err != nil {
		t.Fatalf("AnalyzeBuffer failed: %v", err)
	}
	if !result.Context.IsPortrait || !result.Context.HasBackgroundBlur || result.Context.SubjectRegion != nil {
		t.Fatalf("Expected blurred portrait without subject, got %+v", result.Context)
	}
	// floor is 50 points, not 50 raw units scaled to 100
	if result.Metrics.Sharpness != 50 {
		t.Errorf("Expected sharpness floor 50, got %f", result.Metrics.Sharpness)
	}
	if result.Score != 51 {
		t.Errorf("Expected score 51, got %d", result.Score)
	}
	if result.IsGood {
		t.Error("Expected featureless portrait not to be good")
	}
	if !reflect.DeepEqual(result.Reasons, []string{"Low contrast"}) {
		t.Errorf("Expected reasons [Low contrast], got %v", result.Reasons)
	}
	if result.Quality != types.TierBad {
		t.Errorf("Expected tier Bad, got %s", result.Quality)
	}
}

func TestFlatLandscapeIsBlurry(t *testing.T) {
	analyzer := New()
	buf := paintBuffer(80, 40, func(int, int) color.RGBA { return gray(128) })

	result, err := analyzer.AnalyzeBuffer(buf)
	if err != nil {
		t.Fatalf("AnalyzeBuffer failed: %v", err)
	}
	if result.Metrics.Sharpness != 0 {
		t.Errorf("Expected sharpness 0 without the portrait floor, got %f", result.Metrics.Sharpness)
	}
	want := []string{"Low contrast", "Image is blurry"}
	if !reflect.DeepEqual(result.Reasons, want) {
		t.Errorf("Expected reasons %v, got %v", want, result.Reasons)
	}
	if result.IsGood || result.Score != 36 {
		t.Errorf("Expected score 36 and not good, got %d %v", result.Score, result.IsGood)
	}
}

func TestBokehBonusReachesBlend(t *testing.T) {
	analyzer := New()
	// stripes of 200/216: raw sharpness 32, 64 points, 84 with the bonus
	result, err := analyzer.AnalyzeBuffer(subjectStripes(100, 200, 216))
	if err != nil {
		t.Fatalf("AnalyzeBuffer failed: %v", err)
	}
	if result.Context.SubjectRegion == nil || !result.Context.HasBackgroundBlur {
		t.Fatalf("Expected subject against blurred background, got %+v", result.Context)
	}
	if math.Abs(result.Metrics.Sharpness-84) > 0.001 {
		t.Errorf("Expected sharpness 84, got %f", result.Metrics.Sharpness)
	}

	without := result.Metrics
	without.Sharpness = 64
	plain, _ := analyzer.Aggregate(without, result.Composition)
	if result.Score <= plain.Score {
		t.Errorf("Expected bonus to raise score above %d, got %d", plain.Score, result.Score)
	}

	if !result.IsGood {
		t.Errorf("Expected sharp subject to be good, got score %d", result.Score)
	}
	if !reflect.DeepEqual(result.Reasons, []string{"Low contrast"}) {
		t.Errorf("Expected reasons [Low contrast], got %v", result.Reasons)
	}
	if result.Quality != types.TierBad {
		t.Errorf("Expected low subject contrast to keep tier Bad, got %s", result.Quality)
	}
}

func TestLowKeySubjectFloorsContrast(t *testing.T) {
	analyzer := New()
	// lit subject (mean luma 120) on a near-black frame
	result, err := analyzer.AnalyzeBuffer(subjectStripes(10, 112, 128))
	if err != nil {
		t.Fatalf("AnalyzeBuffer failed: %v", err)
	}
	if !result.Context.IsLowKey || result.Context.SubjectRegion == nil {
		t.Fatalf("Expected low-key image with subject, got %+v", result.Context)
	}

	m := result.Metrics
	if m.Brightness != 70 {
		t.Errorf("Expected brightness 70 for a lit subject, got %f", m.Brightness)
	}
	// subject deviation 8 is 12.5 points, raised to the floor
	if m.Contrast != 50 {
		t.Errorf("Expected contrast floor 50, got %f", m.Contrast)
	}
	if m.NoiseLevel != 100 {
		t.Errorf("Expected noise 92 plus grain allowance, got %f", m.NoiseLevel)
	}

	if result.Quality != types.TierStandard {
		t.Errorf("Expected tier Standard, got %s", result.Quality)
	}
	if !result.IsGood {
		t.Errorf("Expected low-key portrait to be good, got score %d", result.Score)
	}
	if !reflect.DeepEqual(result.Reasons, []string{"Good overall quality"}) {
		t.Errorf("Expected reasons [Good overall quality], got %v", result.Reasons)
	}
}

func TestBlackAndWhiteSkipsColorBalance(t *testing.T) {
	analyzer := New()

	mono, err := analyzer.AnalyzeBuffer(paintBuffer(80, 40, func(int, int) color.RGBA { return gray(128) }))
	if err != nil {
		t.Fatalf("AnalyzeBuffer failed: %v", err)
	}
	// same luma, strong red cast
	tinted, err := analyzer.AnalyzeBuffer(paintBuffer(80, 40, func(int, int) color.RGBA {
		return color.RGBA{200, 100, 84, 255}
	}))
	if err != nil {
		t.Fatalf("AnalyzeBuffer failed: %v", err)
	}

	if !mono.Context.IsBlackAndWhite || tinted.Context.IsBlackAndWhite {
		t.Fatalf("Expected only the gray image to be B&W, got %v and %v",
			mono.Context.IsBlackAndWhite, tinted.Context.IsBlackAndWhite)
	}
	if mono.Metrics.ColorBalance != 100 {
		t.Errorf("Expected color balance 100 for B&W, got %f", mono.Metrics.ColorBalance)
	}
	if slices.Contains(mono.Reasons, "Poor color balance") {
		t.Errorf("Expected no color balance complaint for B&W, got %v", mono.Reasons)
	}
	if !slices.Contains(tinted.Reasons, "Poor color balance") {
		t.Errorf("Expected color balance complaint for tinted image, got %v", tinted.Reasons)
	}
	if mono.Score-tinted.Score != 20 {
		t.Errorf("Expected B&W to gain the full color balance weight, got %d vs %d", mono.Score, tinted.Score)
	}
}

func TestGetImageInfo(t *testing.T) {
	analyzer := New()
	img := createTestImage(400, 300)

	info := analyzer.GetImageInfo(img)

	if info.Width != 400 {
		t.Errorf("Expected width 400, got %d", info.Width)
	}

	if info.Height != 300 {
		t.Errorf("Expected height 300, got %d", info.Height)
	}

	expectedRatio := float64(400) / float64(300)
	if info.AspectRatio != expectedRatio {
		t.Errorf("Expected aspect ratio %f, got %f", expectedRatio, info.AspectRatio)
	}

	if info.Area != 120000 {
		t.Errorf("Expected area 120000, got %d", info.Area)
	}
}

func TestValidateImage(t *testing.T) {
	analyzer := New()

	validImg := createTestImage(200, 200)
	if err := analyzer.ValidateImage(validImg); err != nil {
		t.Errorf("Valid image should pass validation: %v", err)
	}

	invalidImg := createTestImage(10, 10)
	if err := analyzer.ValidateImage(invalidImg); !errors.Is(err, types.ErrImageTooSmall) {
		t.Errorf("Expected ErrImageTooSmall, got %v", err)
	}
}

func TestLoadImageFromReader(t *testing.T) {
	analyzer := New()

	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(32, 32)); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	img, err := analyzer.LoadImageFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadImageFromReader failed: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("Expected width 32, got %d", img.Bounds().Dx())
	}

	_, err = analyzer.LoadImageFromReader(strings.NewReader("not an image"))
	if !errors.Is(err, types.ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestIsFormatSupported(t *testing.T) {
	analyzer := New()

	supportedFormats := []string{"jpg", "jpeg", "png", "JPG", "WEBP", "bmp"}
	for _, format := range supportedFormats {
		if !analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should be supported", format)
		}
	}

	unsupportedFormats := []string{"heic", "svg"}
	for _, format := range unsupportedFormats {
		if analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should not be supported", format)
		}
	}
}

func BenchmarkAnalyzeImage(b *testing.B) {
	analyzer := New()
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.AnalyzeImage(img)
	}
}

func BenchmarkValidateImage(b *testing.B) {
	analyzer := New()
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.ValidateImage(img)
	}
}
