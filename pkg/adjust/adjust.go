// Package adjust re-scores the metric primitives using the detected image
// context. Every function is pure: it reads the buffer and the context and
// returns a number, nothing else.
//
// The rules work on the 0-100 score scale. Contrast and sharpness are
// unbounded gradient statistics, so they are converted with Scales before
// any floor or bonus is applied.
package adjust

import (
	"math"

	"github.com/menta2k/image-quality/pkg/metrics"
	"github.com/menta2k/image-quality/pkg/pixel"
	"github.com/menta2k/image-quality/pkg/types"
)

// Exposure thresholds are in 0-255 luma units, the rest in score points
const (
	subjectDarkLuma    = 30
	subjectBrightLuma  = 200
	globalDarkLuma     = 20
	globalBrightLuma   = 220
	bokehMinSharpness  = 60
	bokehBonus         = 20
	portraitBlurFloor  = 50
	tonalContrastFloor = 50
	shadowGrainBonus   = 10
)

// Scales converts raw contrast and sharpness into 0-100 scores
type Scales struct {
	Contrast  float64
	Sharpness float64
}

// DefaultScales maps a luma deviation of 64 and a mean gradient of 50 to 100
func DefaultScales() Scales {
	return Scales{Contrast: 100.0 / 64.0, Sharpness: 2}
}

// score scales a raw statistic and clamps it to 0-100. A non-positive
// factor leaves the value unscaled.
func score(raw, factor float64) float64 {
	if factor <= 0 {
		factor = 1
	}
	v := raw * factor
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// region returns the subject crop when one was detected, the whole buffer otherwise
func region(buf pixel.Buffer, ctx types.ImageContext) (pixel.Buffer, bool) {
	if ctx.SubjectRegion == nil {
		return buf, false
	}
	crop := buf.Crop(ctx.SubjectRegion.Rectangle)
	if crop.Empty() {
		return buf, false
	}
	return crop, true
}

// Brightness tolerates intentional low-key and high-key exposure as long as
// the subject (or the image, without one) is not crushed or blown out
func Brightness(buf pixel.Buffer, ctx types.ImageContext) float64 {
	target, hasSubject := region(buf, ctx)

	if hasSubject {
		luma := metrics.MeanLuma(target)
		switch {
		case ctx.IsLowKey:
			if luma >= subjectDarkLuma {
				return 70
			}
			return 40
		case ctx.IsHighKey:
			if luma <= subjectBrightLuma {
				return 80
			}
			return 60
		}
		return metrics.Brightness(target)
	}

	luma := metrics.MeanLuma(buf)
	switch {
	case ctx.IsLowKey:
		if luma >= globalDarkLuma {
			return 60
		}
		return 30
	case ctx.IsHighKey:
		if luma <= globalBrightLuma {
			return 80
		}
		return 60
	}
	return metrics.Brightness(buf)
}

// Sharpness rewards a sharp subject against a blurred background. factor
// converts the raw gradient into score points.
func Sharpness(buf pixel.Buffer, ctx types.ImageContext, factor float64) float64 {
	target, hasSubject := region(buf, ctx)

	if hasSubject {
		s := score(metrics.Sharpness(target), factor)
		if ctx.HasBackgroundBlur && s > bokehMinSharpness {
			return math.Min(100, s+bokehBonus)
		}
		return s
	}

	s := score(metrics.Sharpness(buf), factor)
	if ctx.IsPortrait && ctx.HasBackgroundBlur {
		return math.Max(s, portraitBlurFloor)
	}
	return s
}

// ColorBalance does not penalise monochrome images
func ColorBalance(buf pixel.Buffer, ctx types.ImageContext) float64 {
	if ctx.IsBlackAndWhite {
		return 100
	}
	target, _ := region(buf, ctx)
	return metrics.ColorBalance(target)
}

// Contrast floors the score for low-key and high-key images, whose tonal
// range is compressed on purpose. factor converts the luma deviation into
// score points.
func Contrast(buf pixel.Buffer, ctx types.ImageContext, factor float64) float64 {
	target, _ := region(buf, ctx)
	c := score(metrics.Contrast(target), factor)
	if ctx.IsLowKey || ctx.IsHighKey {
		return math.Max(c, tonalContrastFloor)
	}
	return c
}

// NoiseLevel tolerates some grain in the shadows of low-key images
func NoiseLevel(buf pixel.Buffer, ctx types.ImageContext) float64 {
	target, _ := region(buf, ctx)
	n := metrics.NoiseLevel(target)
	if ctx.IsLowKey {
		return math.Min(100, n+shadowGrainBonus)
	}
	return n
}

// Apply runs every context-aware metric. Every field of the result is a
// 0-100 score.
func Apply(buf pixel.Buffer, ctx types.ImageContext, scales Scales) types.MetricSet {
	return types.MetricSet{
		Brightness:   Brightness(buf, ctx),
		Contrast:     Contrast(buf, ctx, scales.Contrast),
		Sharpness:    Sharpness(buf, ctx, scales.Sharpness),
		ColorBalance: ColorBalance(buf, ctx),
		NoiseLevel:   NoiseLevel(buf, ctx),
	}
}
