// Package composition scores how an image is laid out: where its focal
// point sits, how symmetric it is, and whether it has strong diagonals or a
// well placed horizon.
package composition

import (
	"math"

	"github.com/menta2k/image-quality/pkg/pixel"
	"github.com/menta2k/image-quality/pkg/types"
)

// Weights controls how the individual heuristics blend into Overall
type Weights struct {
	RuleOfThirds     float64 `yaml:"rule_of_thirds"`
	GoldenRatio      float64 `yaml:"golden_ratio"`
	Symmetry         float64 `yaml:"symmetry"`
	LeadingLines     float64 `yaml:"leading_lines"`
	HorizonPlacement float64 `yaml:"horizon_placement"`
}

// DefaultWeights returns the standard composition blend
func DefaultWeights() Weights {
	return Weights{
		RuleOfThirds:     0.30,
		GoldenRatio:      0.20,
		Symmetry:         0.20,
		LeadingLines:     0.15,
		HorizonPlacement: 0.15,
	}
}

const (
	phi               = 0.382
	lineMinGradient   = 40
	lineMinAngle      = 20.0
	lineMaxAngle      = 70.0
	horizonMinDelta   = 10
	horizonNeutral    = 50
	distancePenalty   = 200
	horizonPenalty    = 300
	symmetryPenalty   = 200
	leadingLinesScale = 200
)

// Scorer computes composition scores
type Scorer struct {
	weights Weights
}

// New creates a Scorer with the default weights
func New() *Scorer {
	return &Scorer{weights: DefaultWeights()}
}

// NewWithConfig creates a Scorer with custom weights
func NewWithConfig(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score runs every heuristic on the buffer. The subject region of ctx, when
// present, is used as the focal point.
func (s *Scorer) Score(buf pixel.Buffer, ctx types.ImageContext) types.CompositionScore {
	if buf.Empty() || buf.Len() < buf.Width*buf.Height {
		return types.CompositionScore{}
	}

	luma := buf.LumaPlane()
	fx, fy := FocalPoint(buf, luma, ctx)

	score := types.CompositionScore{
		RuleOfThirds:     RuleOfThirds(fx, fy, buf.Width, buf.Height),
		GoldenRatio:      GoldenRatio(fx, fy, buf.Width, buf.Height),
		Symmetry:         symmetry(luma, buf.Width, buf.Height),
		LeadingLines:     leadingLines(luma, buf.Width, buf.Height),
		HorizonPlacement: horizonPlacement(luma, buf.Width, buf.Height),
	}

	w := s.weights
	score.Overall = clamp(w.RuleOfThirds*score.RuleOfThirds +
		w.GoldenRatio*score.GoldenRatio +
		w.Symmetry*score.Symmetry +
		w.LeadingLines*score.LeadingLines +
		w.HorizonPlacement*score.HorizonPlacement)

	return score
}

// FocalPoint returns the subject centre, or the gradient-weighted centroid
// of the image when no subject was detected. A featureless image falls
// back to its geometric centre.
func FocalPoint(buf pixel.Buffer, luma []float64, ctx types.ImageContext) (float64, float64) {
	w, h := buf.Width, buf.Height
	if ctx.SubjectRegion != nil && !ctx.SubjectRegion.Empty() {
		return ctx.SubjectRegion.Rectangle.Clamp(w, h).Center()
	}

	var sumW, sumX, sumY float64
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			i := y*w + x
			g := math.Abs(luma[i+1]-luma[i]) + math.Abs(luma[i+w]-luma[i])
			sumW += g
			sumX += g * (float64(x) + 0.5)
			sumY += g * (float64(y) + 0.5)
		}
	}
	if sumW == 0 {
		return float64(w) / 2, float64(h) / 2
	}
	return sumX / sumW, sumY / sumW
}

// RuleOfThirds scores the distance from (fx, fy) to the nearest thirds
// intersection relative to the image diagonal
func RuleOfThirds(fx, fy float64, width, height int) float64 {
	return pointScore(fx, fy, width, height, 1.0/3, 2.0/3)
}

// GoldenRatio is RuleOfThirds on the phi grid
func GoldenRatio(fx, fy float64, width, height int) float64 {
	return pointScore(fx, fy, width, height, phi, 1-phi)
}

func pointScore(fx, fy float64, width, height int, lo, hi float64) float64 {
	w, h := float64(width), float64(height)
	diag := math.Hypot(w, h)
	if diag == 0 {
		return 0
	}

	best := math.Inf(1)
	for _, px := range [2]float64{w * lo, w * hi} {
		for _, py := range [2]float64{h * lo, h * hi} {
			best = math.Min(best, math.Hypot(fx-px, fy-py))
		}
	}
	return clamp(100 - best/diag*distancePenalty)
}

// symmetry compares the left half with the mirrored right half
func symmetry(luma []float64, w, h int) float64 {
	half := w / 2
	if half == 0 {
		return 100
	}
	var sum float64
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < half; x++ {
			sum += math.Abs(luma[row+x] - luma[row+w-1-x])
		}
	}
	mean := sum / float64(half*h)
	return clamp(100 - mean/255*symmetryPenalty)
}

// leadingLines is the share of strong edges running diagonally
func leadingLines(luma []float64, w, h int) float64 {
	if w < 2 || h < 2 {
		return 0
	}
	strong, diagonal := 0, 0
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			i := y*w + x
			dx := luma[i+1] - luma[i]
			dy := luma[i+w] - luma[i]
			if math.Abs(dx)+math.Abs(dy) <= lineMinGradient {
				continue
			}
			strong++
			angle := math.Atan2(math.Abs(dy), math.Abs(dx)) * 180 / math.Pi
			if angle >= lineMinAngle && angle <= lineMaxAngle {
				diagonal++
			}
		}
	}
	if strong == 0 {
		return 0
	}
	return clamp(float64(diagonal) / float64(strong) * leadingLinesScale)
}

// horizonPlacement finds the row with the strongest vertical gradient and
// scores its distance to the nearest third line. Images without a clear
// horizontal edge get a neutral score.
func horizonPlacement(luma []float64, w, h int) float64 {
	if h < 2 || w == 0 {
		return horizonNeutral
	}
	bestRow, bestMean := 0, 0.0
	for y := 0; y < h-1; y++ {
		var sum float64
		row := y * w
		for x := 0; x < w; x++ {
			sum += math.Abs(luma[row+w+x] - luma[row+x])
		}
		if mean := sum / float64(w); mean > bestMean {
			bestRow, bestMean = y, mean
		}
	}
	if bestMean < horizonMinDelta {
		return horizonNeutral
	}

	hf := float64(h)
	y := float64(bestRow) + 1
	d := math.Min(math.Abs(y-hf/3), math.Abs(y-2*hf/3))
	return clamp(100 - d/hf*horizonPenalty)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
