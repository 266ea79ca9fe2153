package vision

import (
	"math"
	"math/rand/v2"

	"github.com/menta2k/image-quality/pkg/metrics"
	"github.com/menta2k/image-quality/pkg/pixel"
	"github.com/menta2k/image-quality/pkg/types"
)

// Detector classifies the global attributes of an image and locates its subject
type Detector struct {
	config DetectionConfig
}

// DetectionConfig holds the thresholds used by the context detector
type DetectionConfig struct {
	BWSampleSize  int     `yaml:"bw_sample_size"`
	BWThreshold   float64 `yaml:"bw_threshold"`
	LowKeyLuma    float64 `yaml:"low_key_luma"`
	HighKeyLuma   float64 `yaml:"high_key_luma"`
	KeyFraction   float64 `yaml:"key_fraction"`
	PortraitRatio float64 `yaml:"portrait_ratio"`
	EdgeThreshold float64 `yaml:"edge_threshold"`
	BlurDensity   float64 `yaml:"blur_density"`
	MinSalience   float64 `yaml:"min_salience"`
	// Seed makes black-and-white sampling reproducible. Nil samples from
	// the global source, so repeated calls may disagree on borderline images.
	Seed *uint64 `yaml:"seed,omitempty"`
}

// DefaultConfig returns the standard detection thresholds
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		BWSampleSize:  1000,
		BWThreshold:   15,
		LowKeyLuma:    50,
		HighKeyLuma:   200,
		KeyFraction:   0.6,
		PortraitRatio: 1.2,
		EdgeThreshold: 50,
		BlurDensity:   0.1,
		MinSalience:   20,
	}
}

// New creates a new Detector with default configuration
func New() *Detector {
	return &Detector{config: DefaultConfig()}
}

// NewWithConfig creates a new Detector with custom configuration
func NewWithConfig(config DetectionConfig) *Detector {
	return &Detector{config: config}
}

// Config returns the detector configuration
func (d *Detector) Config() DetectionConfig {
	return d.config
}

// AnalyzeImageContext runs every sub-detector once and returns the
// resulting context. The detector holds no per-image state, so one
// Detector can serve concurrent callers.
func (d *Detector) AnalyzeImageContext(buf pixel.Buffer) types.ImageContext {
	return types.ImageContext{
		IsBlackAndWhite:   d.DetectBlackAndWhite(buf),
		IsLowKey:          d.DetectLowKey(buf),
		IsHighKey:         d.DetectHighKey(buf),
		IsPortrait:        d.DetectPortrait(buf.Width, buf.Height),
		HasBackgroundBlur: d.DetectBackgroundBlur(buf),
		SubjectRegion:     d.DetectSalientRegion(buf),
	}
}

// DetectBlackAndWhite samples pixels and measures how far each channel
// strays from the pixel's own average. Grayscale pixels have no spread at
// all, so any sample of them is classified black-and-white.
func (d *Detector) DetectBlackAndWhite(buf pixel.Buffer) bool {
	n := buf.Len()
	if n == 0 {
		return false
	}

	samples := d.config.BWSampleSize
	if samples <= 0 || samples > n {
		samples = n
	}

	intN := rand.IntN
	if d.config.Seed != nil {
		rng := rand.New(rand.NewPCG(*d.config.Seed, *d.config.Seed))
		intN = rng.IntN
	}

	var total float64
	for i := 0; i < samples; i++ {
		r, g, b := buf.RGB(intN(n))
		fr, fg, fb := float64(r), float64(g), float64(b)
		avg := (fr + fg + fb) / 3
		total += (math.Abs(fr-avg) + math.Abs(fg-avg) + math.Abs(fb-avg)) / 3
	}

	return total/float64(samples) < d.config.BWThreshold
}

// DetectLowKey reports whether most of the image sits in the shadows
func (d *Detector) DetectLowKey(buf pixel.Buffer) bool {
	return lumaFraction(buf, func(l float64) bool { return l < d.config.LowKeyLuma }) > d.config.KeyFraction
}

// DetectHighKey reports whether most of the image sits in the highlights
func (d *Detector) DetectHighKey(buf pixel.Buffer) bool {
	return lumaFraction(buf, func(l float64) bool { return l > d.config.HighKeyLuma }) > d.config.KeyFraction
}

func lumaFraction(buf pixel.Buffer, match func(float64) bool) float64 {
	n := buf.Len()
	if n == 0 {
		return 0
	}
	count := 0
	for i := 0; i < n; i++ {
		if match(buf.Luma(i)) {
			count++
		}
	}
	return float64(count) / float64(n)
}

// DetectPortrait is a pure aspect ratio rule
func (d *Detector) DetectPortrait(width, height int) bool {
	return float64(height) > float64(width)*d.config.PortraitRatio
}

// DetectBackgroundBlur thresholds a forward-difference gradient map and
// reports blur when too few pixels are edges. This looks at the whole
// frame, not just the background.
func (d *Detector) DetectBackgroundBlur(buf pixel.Buffer) bool {
	return EdgeDensity(buf, d.config.EdgeThreshold) < d.config.BlurDensity
}

// EdgeDensity returns the share of pixels whose |dx|+|dy| luma gradient
// exceeds threshold. Buffers narrower or shorter than 2 pixels have no
// gradient and report 0.
func EdgeDensity(buf pixel.Buffer, threshold float64) float64 {
	w, h := buf.Width, buf.Height
	if w < 2 || h < 2 || buf.Len() < w*h {
		return 0
	}
	luma := buf.LumaPlane()

	edges := 0
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			i := y*w + x
			g := math.Abs(luma[i+1]-luma[i]) + math.Abs(luma[i+w]-luma[i])
			if g > threshold {
				edges++
			}
		}
	}
	return float64(edges) / float64((w-1)*(h-1))
}

// DetectSalientRegion compares a centred square of side min(W,H)/3 with
// everything around it. The proposed region is always centred; only its
// confidence depends on the content.
func (d *Detector) DetectSalientRegion(buf pixel.Buffer) *types.SubjectRegion {
	w, h := buf.Width, buf.Height
	side := min(w, h) / 3
	if side <= 0 || buf.Len() < w*h {
		return nil
	}

	rect := types.Rectangle{X: (w - side) / 2, Y: (h - side) / 2, Width: side, Height: side}
	center := metrics.MeanLuma(buf.Crop(rect))

	var total float64
	for i := 0; i < w*h; i++ {
		total += buf.Luma(i)
	}
	surroundCount := w*h - side*side
	if surroundCount <= 0 {
		return nil
	}
	surround := (total - center*float64(side*side)) / float64(surroundCount)

	confidence := math.Min(100, math.Abs(center-surround)/2)
	if confidence <= d.config.MinSalience {
		return nil
	}

	return &types.SubjectRegion{
		Rectangle:  rect,
		Confidence: confidence,
		Type:       types.RegionSalient,
	}
}
