package types

import "strings"

// RawAnnotations is the vision model response as parsed from JSON.
// Nothing in here is trusted until it has been normalized.
type RawAnnotations struct {
	SafeSearch map[string]any   `json:"safeSearch"`
	Labels     []map[string]any `json:"labels"`
	Faces      []map[string]any `json:"faces"`
	Text       any              `json:"text"`
	Properties map[string]any   `json:"properties"`
}

// Likelihood is a canonical safe-search / face attribute likelihood
type Likelihood int

const (
	LikelihoodUnknown Likelihood = iota
	VeryUnlikely
	Unlikely
	Possible
	Likely
	VeryLikely
)

var likelihoodNames = [...]string{"UNKNOWN", "VERY_UNLIKELY", "UNLIKELY", "POSSIBLE", "LIKELY", "VERY_LIKELY"}

func (l Likelihood) String() string {
	if l < 0 || int(l) >= len(likelihoodNames) {
		return likelihoodNames[0]
	}
	return likelihoodNames[l]
}

// MarshalText encodes the likelihood by name
func (l Likelihood) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a likelihood name, see ParseLikelihood
func (l *Likelihood) UnmarshalText(b []byte) error {
	*l = ParseLikelihood(string(b))
	return nil
}

// ParseLikelihood canonicalises the spellings vision models use for a
// likelihood ("LIKELY", "very likely", "Very_Unlikely", ...). Anything
// unrecognised is LikelihoodUnknown.
func ParseLikelihood(s string) Likelihood {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for i, name := range likelihoodNames {
		if key == name {
			return Likelihood(i)
		}
	}
	return LikelihoodUnknown
}

// AtLeastLikely reports whether the likelihood is LIKELY or VERY_LIKELY
func (l Likelihood) AtLeastLikely() bool {
	return l >= Likely
}

// SafeSearch holds content-safety likelihoods
type SafeSearch struct {
	Adult    Likelihood `json:"adult"`
	Violence Likelihood `json:"violence"`
	Racy     Likelihood `json:"racy"`
	Medical  Likelihood `json:"medical"`
	Spoof    Likelihood `json:"spoof"`
}

// Label is a recognised concept with a 0-1 score
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Face is a detected face with its quality attributes
type Face struct {
	Confidence  float64    `json:"confidence"`
	Blurred     Likelihood `json:"blurred"`
	UnderExpose Likelihood `json:"underExposed"`
	Joy         Likelihood `json:"joy"`
}

// TextBlock is OCR text found in the image
type TextBlock struct {
	Content string `json:"content"`
	Locale  string `json:"locale,omitempty"`
}

// DominantColor is one entry of the image colour palette
type DominantColor struct {
	R             uint8   `json:"r"`
	G             uint8   `json:"g"`
	B             uint8   `json:"b"`
	Score         float64 `json:"score"`
	PixelFraction float64 `json:"pixelFraction"`
}

// Properties holds global image properties reported by the model
type Properties struct {
	DominantColors []DominantColor `json:"dominantColors"`
}

// VisionResult is the verdict of the vision-model scorer
type VisionResult struct {
	Verdict
	SafeSearch *SafeSearch `json:"safeSearch,omitempty"`
	Labels     []Label     `json:"labels,omitempty"`
	Faces      []Face      `json:"faces,omitempty"`
	Text       *TextBlock  `json:"text,omitempty"`
	Properties *Properties `json:"properties,omitempty"`
}
