package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/image-quality/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseAnnotations decodes a model response into raw annotations. Vision
// models are sloppy JSON writers, so the text is sanitised first and a
// response that still does not parse yields an empty annotation set
// rather than an error.
func ParseAnnotations(raw string) *types.RawAnnotations {
	raw = SanitizeModelJSON(raw)

	var result types.RawAnnotations
	if !strings.HasPrefix(raw, "{") {
		return &result
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return &types.RawAnnotations{}
	}
	return &result
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	// Inline comments need leading whitespace so "https://..." survives
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
