// Package metrics implements the pixel-level quality primitives.
//
// Every function is a single pure pass (contrast makes two) over a
// pixel.Buffer. Nothing is cached; each primitive is expected to run once
// per image. Luma is the plain (R+G+B)/3 average in 0-255 units.
package metrics

import (
	"math"

	"github.com/menta2k/image-quality/pkg/pixel"
	"github.com/menta2k/image-quality/pkg/types"
)

// IdealRatio is the expected share of R, G and B in a well balanced image
// (ITU-R BT.601 luma weights)
var IdealRatio = [3]float64{0.299, 0.587, 0.114}

// MeanLuma returns the mean (R+G+B)/3 value in 0-255 units, 0 for an empty buffer
func MeanLuma(buf pixel.Buffer) float64 {
	n := buf.Len()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += buf.Luma(i)
	}
	return sum / float64(n)
}

// Brightness returns the mean per-pixel RGB average on a 0-100 scale.
// An empty buffer yields 0; use BrightnessE to tell that apart.
func Brightness(buf pixel.Buffer) float64 {
	return MeanLuma(buf) / 2.55
}

// BrightnessE is Brightness with an explicit guard for empty input
func BrightnessE(buf pixel.Buffer) (float64, error) {
	if buf.Len() == 0 {
		return 0, types.ErrEmptyBuffer
	}
	return Brightness(buf), nil
}

// Contrast returns the population standard deviation of luma around its mean
func Contrast(buf pixel.Buffer) float64 {
	n := buf.Len()
	if n == 0 {
		return 0
	}
	mean := MeanLuma(buf)
	var sum float64
	for i := 0; i < n; i++ {
		d := buf.Luma(i) - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// Sharpness returns the mean four-neighbour absolute luma gradient over the
// interior pixels. The 1-pixel border is never visited, so images smaller
// than 3x3 have no interior and score 0. The result is bounded by 4*255.
func Sharpness(buf pixel.Buffer) float64 {
	w, h := buf.Width, buf.Height
	if w < 3 || h < 3 || buf.Len() < w*h {
		return 0
	}
	luma := buf.LumaPlane()

	var sum float64
	for y := 1; y < h-1; y++ {
		row := y * w
		for x := 1; x < w-1; x++ {
			i := row + x
			c := luma[i]
			sum += math.Abs(c-luma[i-1]) + math.Abs(c-luma[i+1]) +
				math.Abs(c-luma[i-w]) + math.Abs(c-luma[i+w])
		}
	}
	return sum / float64((w-2)*(h-2))
}

// ColorBalance compares the observed mean R/G/B shares with IdealRatio and
// maps the total absolute deviation to max(0, 100 - deviation*200)
func ColorBalance(buf pixel.Buffer) float64 {
	n := buf.Len()
	if n == 0 {
		return 0
	}
	var sr, sg, sb float64
	for i := 0; i < n; i++ {
		r, g, b := buf.RGB(i)
		sr += float64(r)
		sg += float64(g)
		sb += float64(b)
	}
	total := sr + sg + sb
	if total == 0 {
		return 0
	}

	deviation := math.Abs(sr/total-IdealRatio[0]) +
		math.Abs(sg/total-IdealRatio[1]) +
		math.Abs(sb/total-IdealRatio[2])
	return math.Max(0, 100-deviation*200)
}

// NoiseLevel measures, for every interior pixel, how far its luma sits from
// the average of its four direct neighbours. The mean deviation is inverted
// (100 - avg, floored at 0) so that a clean image scores high.
func NoiseLevel(buf pixel.Buffer) float64 {
	w, h := buf.Width, buf.Height
	if w < 3 || h < 3 || buf.Len() < w*h {
		return 100
	}
	luma := buf.LumaPlane()

	var sum float64
	for y := 1; y < h-1; y++ {
		row := y * w
		for x := 1; x < w-1; x++ {
			i := row + x
			neighbours := (luma[i-1] + luma[i+1] + luma[i-w] + luma[i+w]) / 4
			sum += math.Abs(luma[i] - neighbours)
		}
	}
	avg := sum / float64((w-2)*(h-2))
	return math.Max(0, 100-avg)
}

// Compute runs all five primitives over the buffer
func Compute(buf pixel.Buffer) types.MetricSet {
	return types.MetricSet{
		Brightness:   Brightness(buf),
		Contrast:     Contrast(buf),
		Sharpness:    Sharpness(buf),
		ColorBalance: ColorBalance(buf),
		NoiseLevel:   NoiseLevel(buf),
	}
}
