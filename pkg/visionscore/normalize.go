package visionscore

import (
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/image-quality/pkg/types"
)

// MaxLabels caps the number of labels kept after normalization
const MaxLabels = 10

// Feature is one normalized annotation group. The concrete type tells
// which group it is: SafeSearchFeature, LabelsFeature, FacesFeature,
// TextFeature or PropertiesFeature.
type Feature interface {
	feature()
}

// SafeSearchFeature holds content-safety likelihoods
type SafeSearchFeature struct{ types.SafeSearch }

// LabelsFeature holds cleaned labels
type LabelsFeature struct{ Labels []types.Label }

// FacesFeature holds detected faces
type FacesFeature struct{ Faces []types.Face }

// TextFeature holds OCR text
type TextFeature struct{ types.TextBlock }

// PropertiesFeature holds the colour palette
type PropertiesFeature struct{ types.Properties }

func (SafeSearchFeature) feature() {}
func (LabelsFeature) feature()     {}
func (FacesFeature) feature()      {}
func (TextFeature) feature()       {}
func (PropertiesFeature) feature() {}

// Normalize turns untrusted model output into typed features. Groups the
// model left out, or sent in an unusable shape, are omitted.
func Normalize(raw *types.RawAnnotations) []Feature {
	if raw == nil {
		return nil
	}
	var out []Feature
	if raw.SafeSearch != nil {
		out = append(out, normalizeSafeSearch(raw.SafeSearch))
	}
	if labels := normalizeLabels(raw.Labels); len(labels) > 0 {
		out = append(out, LabelsFeature{Labels: labels})
	}
	if raw.Faces != nil {
		out = append(out, FacesFeature{Faces: normalizeFaces(raw.Faces)})
	}
	if text, ok := normalizeText(raw.Text); ok {
		out = append(out, TextFeature{TextBlock: text})
	}
	if colors := normalizeColors(raw.Properties); len(colors) > 0 {
		out = append(out, PropertiesFeature{Properties: types.Properties{DominantColors: colors}})
	}
	return out
}

func normalizeSafeSearch(m map[string]any) SafeSearchFeature {
	return SafeSearchFeature{types.SafeSearch{
		Adult:    likelihood(m, "adult"),
		Violence: likelihood(m, "violence"),
		Racy:     likelihood(m, "racy"),
		Medical:  likelihood(m, "medical"),
		Spoof:    likelihood(m, "spoof"),
	}}
}

// normalizeLabels lowercases, dedupes and limits labels, keeping the
// model's order
func normalizeLabels(raw []map[string]any) []types.Label {
	seen := map[string]struct{}{}
	out := make([]types.Label, 0, MaxLabels)
	for _, m := range raw {
		desc := strings.ToLower(strings.TrimSpace(str(m, "description", "label", "name")))
		if desc == "" {
			continue
		}
		if _, ok := seen[desc]; ok {
			continue
		}
		seen[desc] = struct{}{}
		out = append(out, types.Label{
			Description: desc,
			Score:       unit(num(m, "score", "confidence")),
		})
		if len(out) == MaxLabels {
			break
		}
	}
	return out
}

func normalizeFaces(raw []map[string]any) []types.Face {
	out := make([]types.Face, 0, len(raw))
	for _, m := range raw {
		out = append(out, types.Face{
			Confidence:  unit(num(m, "confidence", "detectionConfidence")),
			Blurred:     likelihood(m, "blurred", "blurredLikelihood"),
			UnderExpose: likelihood(m, "underExposed", "underExposedLikelihood"),
			Joy:         likelihood(m, "joy", "joyLikelihood"),
		})
	}
	return out
}

// normalizeText accepts either a bare string or a {content, locale} object
func normalizeText(raw any) (types.TextBlock, bool) {
	var block types.TextBlock
	switch v := raw.(type) {
	case string:
		block.Content = v
	case map[string]any:
		block.Content = str(v, "content", "text", "description")
		block.Locale = str(v, "locale")
	}
	block.Content = strings.TrimSpace(block.Content)
	return block, block.Content != ""
}

func normalizeColors(props map[string]any) []types.DominantColor {
	list, _ := props["dominantColors"].([]any)
	out := make([]types.DominantColor, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, types.DominantColor{
			R:             channel(num(m, "r", "red")),
			G:             channel(num(m, "g", "green")),
			B:             channel(num(m, "b", "blue")),
			Score:         unit(num(m, "score")),
			PixelFraction: unit(num(m, "pixelFraction")),
		})
	}
	return out
}

// likelihood reads the first present key as a likelihood name. Numeric
// values are taken as enum positions (1 = VERY_UNLIKELY).
func likelihood(m map[string]any, keys ...string) types.Likelihood {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			return types.ParseLikelihood(v)
		case float64:
			if v >= float64(types.VeryUnlikely) && v <= float64(types.VeryLikely) {
				return types.Likelihood(v)
			}
			return types.LikelihoodUnknown
		}
	}
	return types.LikelihoodUnknown
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

func num(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// unit clamps to [0,1], reading values above 1 as percentages
func unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		v /= 100
	}
	return math.Min(1, v)
}

func channel(v float64) uint8 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}
