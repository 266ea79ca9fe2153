package analyzer

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-quality/pkg/adjust"
	"github.com/menta2k/image-quality/pkg/composition"
	"github.com/menta2k/image-quality/pkg/pixel"
	"github.com/menta2k/image-quality/pkg/types"
	"github.com/menta2k/image-quality/pkg/vision"
)

// ImageAnalyzer runs the local quality pipeline: context detection,
// context-aware metrics, composition and aggregation
type ImageAnalyzer struct {
	config   Config
	detector *vision.Detector
	composer *composition.Scorer
}

// Weights is the blend of sub-scores into the final quality score
type Weights struct {
	Brightness   float64 `yaml:"brightness"`
	Contrast     float64 `yaml:"contrast"`
	Sharpness    float64 `yaml:"sharpness"`
	ColorBalance float64 `yaml:"color_balance"`
	Composition  float64 `yaml:"composition"`
}

// Config holds configuration for the image analyzer. Images larger than
// MaxDimension are downscaled before analysis (0 disables this). Contrast
// and sharpness are unbounded gradient statistics; ContrastScale and
// SharpnessScale bring typical photographs into 0-100 before the context
// rules run.
type Config struct {
	SupportedFormats []string               `yaml:"supported_formats"`
	MinImageSize     int                    `yaml:"min_image_size"`
	MaxDimension     int                    `yaml:"max_dimension"`
	GoodThreshold    int                    `yaml:"good_threshold"`
	Weights          Weights                `yaml:"weights"`
	ContrastScale    float64                `yaml:"contrast_scale"`
	SharpnessScale   float64                `yaml:"sharpness_scale"`
	Detection        vision.DetectionConfig `yaml:"-"`
	Composition      composition.Weights    `yaml:"-"`
}

// DefaultConfig returns the standard analyzer configuration
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "tiff"},
		MinImageSize:     16,
		MaxDimension:     1024,
		GoodThreshold:    60,
		Weights: Weights{
			Brightness:   0.2,
			Contrast:     0.2,
			Sharpness:    0.3,
			ColorBalance: 0.2,
			Composition:  0.1,
		},
		ContrastScale:  adjust.DefaultScales().Contrast,
		SharpnessScale: adjust.DefaultScales().Sharpness,
		Detection:      vision.DefaultConfig(),
		Composition:    composition.DefaultWeights(),
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{
		config:   config,
		detector: vision.NewWithConfig(config.Detection),
		composer: composition.NewWithConfig(config.Composition),
	}
}

// Config returns the analyzer configuration
func (a *ImageAnalyzer) Config() Config {
	return a.config
}

// LoadImage loads an image from file
func (a *ImageAnalyzer) LoadImage(filepath string) (image.Image, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	return a.LoadImageFromReader(file)
}

// LoadImageFromReader loads an image from an io.Reader
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecode, err)
	}

	if !a.isFormatSupported(format) {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, format)
	}

	return img, nil
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("%w: %dx%d (minimum: %d)", types.ErrImageTooSmall,
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}

// AnalyzeImage downscales img to MaxDimension if needed and runs the local
// pipeline on it. Width, Height and the subject region in the result are
// in the coordinates of img.
func (a *ImageAnalyzer) AnalyzeImage(img image.Image) (*types.AnalysisResult, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: %dx%d", types.ErrInvalidDimensions, bounds.Dx(), bounds.Dy())
	}

	work := img
	if limit := a.config.MaxDimension; limit > 0 && (bounds.Dx() > limit || bounds.Dy() > limit) {
		work = imaging.Fit(img, limit, limit, imaging.Lanczos)
	}

	result, err := a.AnalyzeBuffer(pixel.FromImage(work))
	if err != nil {
		return nil, err
	}
	if r := result.Context.SubjectRegion; r != nil && result.Width != bounds.Dx() {
		result.Context.SubjectRegion = scaleRegion(r,
			float64(bounds.Dx())/float64(result.Width),
			float64(bounds.Dy())/float64(result.Height))
	}
	result.Width, result.Height = bounds.Dx(), bounds.Dy()
	return result, nil
}

// scaleRegion maps a region found on a downscaled copy back to the source image
func scaleRegion(r *types.SubjectRegion, sx, sy float64) *types.SubjectRegion {
	scaled := *r
	scaled.X = int(math.Round(float64(r.X) * sx))
	scaled.Y = int(math.Round(float64(r.Y) * sy))
	scaled.Width = int(math.Round(float64(r.Width) * sx))
	scaled.Height = int(math.Round(float64(r.Height) * sy))
	return &scaled
}

// AnalyzeBuffer runs the local pipeline on a raw RGBA buffer
func (a *ImageAnalyzer) AnalyzeBuffer(buf pixel.Buffer) (*types.AnalysisResult, error) {
	if buf.Empty() {
		return nil, types.ErrEmptyBuffer
	}
	if len(buf.Pix) != buf.Width*buf.Height*4 {
		return nil, fmt.Errorf("%w: have %d bytes for %dx%d", types.ErrInvalidDimensions,
			len(buf.Pix), buf.Width, buf.Height)
	}

	ctx := a.detector.AnalyzeImageContext(buf)
	metrics := adjust.Apply(buf, ctx, adjust.Scales{
		Contrast:  a.config.ContrastScale,
		Sharpness: a.config.SharpnessScale,
	})
	comp := a.composer.Score(buf, ctx)
	verdict, tier := a.Aggregate(metrics, comp)

	return &types.AnalysisResult{
		Verdict:     verdict,
		Quality:     tier,
		Metrics:     metrics,
		Composition: comp,
		Context:     ctx,
		Width:       buf.Width,
		Height:      buf.Height,
	}, nil
}

// scaled holds the blend inputs, each clamped to 0-100
type scaled struct {
	brightness, contrast, sharpness, colorBalance, noise, composition float64
}

// scale clamps the sub-scores. m is already on the score scale, see adjust.Apply.
func scale(m types.MetricSet, comp types.CompositionScore) scaled {
	return scaled{
		brightness:   clamp(m.Brightness),
		contrast:     clamp(m.Contrast),
		sharpness:    clamp(m.Sharpness),
		colorBalance: clamp(m.ColorBalance),
		noise:        clamp(m.NoiseLevel),
		composition:  clamp(comp.Overall),
	}
}

// Aggregate blends the metrics into a verdict and assigns a display tier.
// m holds 0-100 scores as returned by adjust.Apply.
// The tier is decided on brightness, contrast and sharpness alone, so it
// does not always agree with IsGood.
func (a *ImageAnalyzer) Aggregate(m types.MetricSet, comp types.CompositionScore) (types.Verdict, types.Tier) {
	s := scale(m, comp)
	w := a.config.Weights

	blend := w.Brightness*s.brightness +
		w.Contrast*s.contrast +
		w.Sharpness*s.sharpness +
		w.ColorBalance*s.colorBalance +
		w.Composition*s.composition
	score := int(math.Round(clamp(blend)))

	verdict := types.Verdict{
		Score:  score,
		IsGood: score > a.config.GoodThreshold,
	}
	verdict.Reasons = reasons(s, verdict.IsGood)

	return verdict, tier(s)
}

func reasons(s scaled, isGood bool) []string {
	out := []string{}
	if s.brightness < 30 {
		out = append(out, "Image is too dark")
	}
	if s.brightness > 85 {
		out = append(out, "Image is overexposed")
	}
	if s.contrast < 30 {
		out = append(out, "Low contrast")
	}
	if s.sharpness < 30 {
		out = append(out, "Image is blurry")
	}
	if s.colorBalance < 40 {
		out = append(out, "Poor color balance")
	}
	if s.noise < 70 {
		out = append(out, "Visible noise")
	}
	if s.composition < 40 {
		out = append(out, "Weak composition")
	}
	if isGood && len(out) == 0 {
		out = append(out, "Good overall quality")
	}
	return out
}

func tier(s scaled) types.Tier {
	switch {
	case s.brightness >= 70 && s.contrast >= 70 && s.sharpness >= 70:
		return types.TierGood
	case s.brightness >= 50 && s.contrast >= 50 && s.sharpness >= 50:
		return types.TierStandard
	default:
		return types.TierBad
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
