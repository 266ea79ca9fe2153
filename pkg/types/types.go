package types

// Rectangle is an integer region inside an image, in pixels
type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Clamp returns the rectangle clipped to a width x height image.
// Out-of-range values are clamped, never rejected.
func (r Rectangle) Clamp(width, height int) Rectangle {
	x0 := clampInt(r.X, 0, width)
	y0 := clampInt(r.Y, 0, height)
	x1 := clampInt(r.X+r.Width, x0, width)
	y1 := clampInt(r.Y+r.Height, y0, height)
	return Rectangle{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Center returns the center point of the rectangle
func (r Rectangle) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// Area returns the area of the rectangle
func (r Rectangle) Area() int {
	return r.Width * r.Height
}

// Empty reports whether the rectangle covers no pixels
func (r Rectangle) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// RegionType tells how a subject region was found
type RegionType string

const (
	RegionSalient  RegionType = "salient"
	RegionEdge     RegionType = "edge"
	RegionContrast RegionType = "contrast"
)

// SubjectRegion is the single detected subject of an image
type SubjectRegion struct {
	Rectangle
	Confidence float64    `json:"confidence"`
	Type       RegionType `json:"type"`
}

// ImageContext holds the global attributes detected for one image.
// It is computed once and never modified afterwards.
type ImageContext struct {
	IsBlackAndWhite   bool           `json:"isBlackAndWhite"`
	IsLowKey          bool           `json:"isLowKey"`
	IsHighKey         bool           `json:"isHighKey"`
	IsPortrait        bool           `json:"isPortrait"`
	HasBackgroundBlur bool           `json:"hasBackgroundBlur"`
	SubjectRegion     *SubjectRegion `json:"subjectRegion"`
}

// MetricSet contains the per-image quality metrics
type MetricSet struct {
	Brightness   float64 `json:"brightness"`
	Contrast     float64 `json:"contrast"`
	Sharpness    float64 `json:"sharpness"`
	ColorBalance float64 `json:"colorBalance"`
	NoiseLevel   float64 `json:"noiseLevel"`
}

// CompositionScore breaks down the composition heuristics, each 0-100
type CompositionScore struct {
	Overall          float64 `json:"overall"`
	RuleOfThirds     float64 `json:"ruleOfThirds"`
	GoldenRatio      float64 `json:"goldenRatio"`
	Symmetry         float64 `json:"symmetry"`
	LeadingLines     float64 `json:"leadingLines"`
	HorizonPlacement float64 `json:"horizonPlacement"`
}

// Tier buckets a result for batch display
type Tier string

const (
	TierGood     Tier = "Good"
	TierStandard Tier = "Standard"
	TierBad      Tier = "Bad"
)

// Method selects the scorer used for an analysis
type Method string

const (
	MethodLocal  Method = "local"
	MethodVision Method = "vision"
)

// ParseMethod converts a user supplied string into a Method
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodLocal, "":
		return MethodLocal, nil
	case MethodVision:
		return MethodVision, nil
	default:
		return "", &MethodError{Method: s}
	}
}

// Verdict is the envelope shared by every scorer
type Verdict struct {
	Score   int      `json:"score"`
	IsGood  bool     `json:"isGood"`
	Reasons []string `json:"reasons"`
}

// AnalysisResult is the verdict of the local heuristic pipeline
type AnalysisResult struct {
	Verdict
	Quality     Tier             `json:"quality"`
	Metrics     MetricSet        `json:"metrics"`
	Composition CompositionScore `json:"composition"`
	Context     ImageContext     `json:"context"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
}

// Assessment is the result of analysing one source with a given method.
// Exactly one of Local and Vision is set.
type Assessment struct {
	Method Method `json:"method"`
	Verdict
	Quality Tier            `json:"quality"`
	Local   *AnalysisResult `json:"local,omitempty"`
	Vision  *VisionResult   `json:"vision,omitempty"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
