// Package visionscore scores images with a remote vision model. The model
// is asked for annotations (safe search, labels, faces, text, colours),
// the reply is normalized into typed features, and the features are scored
// with fixed rules.
package visionscore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/image-quality/pkg/client"
	"github.com/menta2k/image-quality/pkg/types"
)

// GoodThreshold is the score a vision result must exceed to be good
const GoodThreshold = 70

const (
	baseScore         = 20
	labelWeight       = 40
	faceWeight        = 20
	neutralFaceScore  = 10
	colorPoints       = 4
	maxColors         = 5
	facePenalty       = 15
	minRecognizable   = 2
	reasonUnsafe      = "Inappropriate content detected"
	reasonBlurred     = "Subject appears blurred"
	reasonUnderexpose = "Subject is underexposed"
	reasonFewSubjects = "Few recognizable subjects"
	reasonGood        = "Good overall quality"
)

// Scorer handles image scoring using vision models
type Scorer struct {
	client client.VisionClient
	model  string
	prompt string
	logger zerolog.Logger
}

// Option configures a Scorer
type Option func(*Scorer)

// WithPrompt replaces DefaultPrompt
func WithPrompt(prompt string) Option {
	return func(s *Scorer) { s.prompt = prompt }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// NewScorer creates a new scorer with a vision client
func NewScorer(client client.VisionClient, model string, opts ...Option) *Scorer {
	s := &Scorer{
		client: client,
		model:  model,
		prompt: DefaultPrompt,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the model name sent with every request
func (s *Scorer) Model() string {
	return s.model
}

// Score annotates the base64 image and scores the result. Transport and
// model failures are wrapped in types.ErrRemoteAnalysis.
func (s *Scorer) Score(ctx context.Context, imageB64 string) (*types.VisionResult, error) {
	start := time.Now()
	raw, err := s.client.Annotate(ctx, s.model, s.prompt, imageB64)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.model).Msg("Vision annotation failed")
		return nil, fmt.Errorf("%w: %v", types.ErrRemoteAnalysis, err)
	}

	features := Normalize(raw)
	result := Evaluate(features)

	s.logger.Debug().
		Str("model", s.model).
		Int("features", len(features)).
		Int("score", result.Score).
		Dur("took", time.Since(start)).
		Msg("Vision annotation scored")

	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (s *Scorer) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return s.client.SimpleQuery(ctx, s.model, SimpleTestPrompt, imageB64)
}

// Evaluate scores a set of normalized features
func Evaluate(features []Feature) *types.VisionResult {
	result := &types.VisionResult{}
	for _, f := range features {
		switch v := f.(type) {
		case SafeSearchFeature:
			ss := v.SafeSearch
			result.SafeSearch = &ss
		case LabelsFeature:
			result.Labels = v.Labels
		case FacesFeature:
			result.Faces = v.Faces
		case TextFeature:
			tb := v.TextBlock
			result.Text = &tb
		case PropertiesFeature:
			p := v.Properties
			result.Properties = &p
		}
	}

	score := float64(baseScore)

	if len(result.Labels) > 0 {
		var sum float64
		for _, l := range result.Labels {
			sum += l.Score
		}
		score += sum / float64(len(result.Labels)) * labelWeight
	}

	blurred, underexposed := false, false
	if len(result.Faces) == 0 {
		score += neutralFaceScore
	} else {
		var sum float64
		for _, f := range result.Faces {
			sum += f.Confidence
			blurred = blurred || f.Blurred.AtLeastLikely()
			underexposed = underexposed || f.UnderExpose.AtLeastLikely()
		}
		score += sum / float64(len(result.Faces)) * faceWeight
	}

	if result.Properties != nil {
		score += float64(min(len(result.Properties.DominantColors), maxColors) * colorPoints)
	}

	if blurred {
		score -= facePenalty
	}
	if underexposed {
		score -= facePenalty
	}

	safe := SafeSearchClean(result.SafeSearch)
	result.Score = int(math.Round(math.Max(0, math.Min(100, score))))
	result.IsGood = result.Score > GoodThreshold && safe

	reasons := []string{}
	if !safe {
		reasons = append(reasons, reasonUnsafe)
	}
	if blurred {
		reasons = append(reasons, reasonBlurred)
	}
	if underexposed {
		reasons = append(reasons, reasonUnderexpose)
	}
	if len(result.Labels) < minRecognizable {
		reasons = append(reasons, reasonFewSubjects)
	}
	if result.IsGood && len(reasons) == 0 {
		reasons = append(reasons, reasonGood)
	}
	result.Reasons = reasons

	return result
}

// SafeSearchClean reports whether adult, violence and racy content are all
// below LIKELY. Missing safe-search data counts as clean.
func SafeSearchClean(ss *types.SafeSearch) bool {
	if ss == nil {
		return true
	}
	return !ss.Adult.AtLeastLikely() && !ss.Violence.AtLeastLikely() && !ss.Racy.AtLeastLikely()
}

// TierFor buckets a vision score for batch display
func TierFor(score int) types.Tier {
	switch {
	case score >= 70:
		return types.TierGood
	case score >= 50:
		return types.TierStandard
	default:
		return types.TierBad
	}
}
