// Package imagequality scores photographs for quality.
//
// Two scorers share one verdict envelope (score 0-100, good flag,
// reasons). The local scorer first detects the context of an image
// (black and white, low or high key, portrait, background blur, subject
// region), then measures brightness, contrast, sharpness, colour balance
// and noise in a way that respects that context, and blends them with a
// composition score. The vision scorer asks a multimodal model served by
// Ollama or llama.cpp for structured annotations and scores those.
//
// Basic usage:
//
//	iq := imagequality.New()
//	a, err := iq.Analyze(ctx, "photo.jpg", types.MethodLocal)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%d %s %v\n", a.Score, a.Quality, a.Reasons)
//
// For many files, pkg/batch runs BatchFunc over a collection in chunks
// and pkg/report exports the results.
package imagequality

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/image-quality/internal/utils"
	"github.com/menta2k/image-quality/pkg/analyzer"
	"github.com/menta2k/image-quality/pkg/batch"
	"github.com/menta2k/image-quality/pkg/client"
	"github.com/menta2k/image-quality/pkg/pixel"
	"github.com/menta2k/image-quality/pkg/processing"
	"github.com/menta2k/image-quality/pkg/types"
	"github.com/menta2k/image-quality/pkg/visionscore"
)

// Version of the image quality library
const Version = "2.0.0"

// QuotaKey is used when WithQuota is given no key
const QuotaKey = "default"

// Quota reserves one use before every analysis. Reserve must check and
// charge atomically; the use is handed back with Release when the
// analysis fails.
type Quota interface {
	Reserve(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// SendOptions controls how images are encoded for the vision model
type SendOptions struct {
	MaxDimension int
	Quality      int
	Format       string
}

// Analyzer is the entry point for scoring images
type Analyzer struct {
	analyzer  *analyzer.ImageAnalyzer
	processor *processing.Processor
	scorer    *visionscore.Scorer
	vclient   client.VisionClient
	vmodel    string
	vopts     []visionscore.Option
	quota     Quota
	quotaKey  string
	send      SendOptions
	timeout   time.Duration
	logger    zerolog.Logger
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger used by the analyzer and its vision scorer
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithVisionClient enables MethodVision using c and model
func WithVisionClient(c client.VisionClient, model string, opts ...visionscore.Option) Option {
	return func(a *Analyzer) {
		a.vclient, a.vmodel, a.vopts = c, model, opts
	}
}

// WithQuota charges every analysis to key in q
func WithQuota(q Quota, key string) Option {
	return func(a *Analyzer) {
		a.quota = q
		a.quotaKey = key
		if a.quotaKey == "" {
			a.quotaKey = QuotaKey
		}
	}
}

// WithSendOptions changes how images are prepared for the vision model
func WithSendOptions(send SendOptions) Option {
	return func(a *Analyzer) { a.send = send }
}

// WithVisionTimeout bounds each vision request when the caller's
// context has no deadline
func WithVisionTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// New creates an Analyzer with the default local configuration and no
// vision backend
func New(opts ...Option) *Analyzer {
	return NewWithConfig(analyzer.DefaultConfig(), opts...)
}

// NewWithConfig creates an Analyzer with a custom local configuration
func NewWithConfig(cfg analyzer.Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		analyzer:  analyzer.NewWithConfig(cfg),
		processor: processing.NewProcessor(),
		send:      SendOptions{MaxDimension: 1024, Quality: 85, Format: "jpeg"},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.vclient != nil {
		vlog := a.logger.With().Str("component", "vision").Logger()
		vopts := append([]visionscore.Option{visionscore.WithLogger(vlog)}, a.vopts...)
		a.scorer = visionscore.NewScorer(a.vclient, a.vmodel, vopts...)
	}
	return a
}

// VisionAvailable reports whether MethodVision can be used
func (a *Analyzer) VisionAvailable() bool {
	return a.scorer != nil
}

// LoadImage reads a path, URL, data URL or raw base64 string
func (a *Analyzer) LoadImage(ctx context.Context, source string) (image.Image, error) {
	return a.processor.LoadImageSmart(ctx, source)
}

// GetImageInfo returns basic information about an image
func (a *Analyzer) GetImageInfo(img image.Image) analyzer.ImageInfo {
	return a.analyzer.GetImageInfo(img)
}

// ValidateImage checks if an image meets the minimum size
func (a *Analyzer) ValidateImage(img image.Image) error {
	return a.analyzer.ValidateImage(img)
}

// AnalyzeImage runs the local scorer on a decoded image
func (a *Analyzer) AnalyzeImage(img image.Image) (*types.AnalysisResult, error) {
	return a.analyzer.AnalyzeImage(img)
}

// AnalyzeBuffer runs the local scorer on raw RGBA pixels
func (a *Analyzer) AnalyzeBuffer(buf pixel.Buffer) (*types.AnalysisResult, error) {
	return a.analyzer.AnalyzeBuffer(buf)
}

// Analyze loads source and scores it with method
func (a *Analyzer) Analyze(ctx context.Context, source string, method types.Method) (*types.Assessment, error) {
	return a.run(ctx, source, method, func() (image.Image, error) {
		return a.processor.LoadImageSmart(ctx, source)
	})
}

// AnalyzeFile scores the image file at path with method
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, method types.Method) (*types.Assessment, error) {
	return a.run(ctx, path, method, func() (image.Image, error) {
		return a.processor.LoadImage(path)
	})
}

// BatchFunc adapts AnalyzeFile for the batch orchestrator
func (a *Analyzer) BatchFunc(method types.Method) batch.AnalyzeFunc {
	return func(ctx context.Context, path string) (*types.Assessment, error) {
		return a.AnalyzeFile(ctx, path, method)
	}
}

// DebugOverlay draws the thirds grid and subject region of result onto a
// copy of img
func (a *Analyzer) DebugOverlay(img image.Image, result *types.AnalysisResult) image.Image {
	return a.processor.CreateDebugOverlay(img, result)
}

// SaveDebugOverlay renders the overlay for img into dir and returns the
// written path
func (a *Analyzer) SaveDebugOverlay(img image.Image, result *types.AnalysisResult, source, dir string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create debug dir: %w", err)
	}
	path := utils.GenerateOutputFilename(source, dir, "", "_debug", "png")
	if err := a.processor.SaveImage(a.DebugOverlay(img, result), path, "png", 100, false); err != nil {
		return "", fmt.Errorf("failed to save debug overlay: %w", err)
	}
	return path, nil
}

func (a *Analyzer) run(ctx context.Context, source string, method types.Method, load func() (image.Image, error)) (*types.Assessment, error) {
	switch method {
	case types.MethodLocal:
	case types.MethodVision:
		if a.scorer == nil {
			return nil, types.ErrVisionNotAvailable
		}
	default:
		return nil, &types.MethodError{Method: string(method)}
	}

	if a.quota != nil {
		if err := a.quota.Reserve(ctx, a.quotaKey); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	assessment, err := a.assess(ctx, method, load)
	if err != nil {
		a.release(ctx)
		return nil, err
	}

	a.logger.Debug().
		Str("source", source).
		Str("method", string(method)).
		Int("score", assessment.Score).
		Str("quality", string(assessment.Quality)).
		Dur("took", time.Since(start)).
		Msg("image analyzed")

	return assessment, nil
}

func (a *Analyzer) assess(ctx context.Context, method types.Method, load func() (image.Image, error)) (*types.Assessment, error) {
	img, err := load()
	if err != nil {
		return nil, err
	}
	if err := a.analyzer.ValidateImage(img); err != nil {
		return nil, err
	}
	if method == types.MethodVision {
		return a.vision(ctx, img)
	}
	return a.local(img)
}

// release hands back the reserved use of a failed analysis. It runs even
// when ctx was cancelled.
func (a *Analyzer) release(ctx context.Context) {
	if a.quota == nil {
		return
	}
	if err := a.quota.Release(context.WithoutCancel(ctx), a.quotaKey); err != nil {
		a.logger.Warn().Err(err).Msg("failed to release quota reservation")
	}
}

func (a *Analyzer) local(img image.Image) (*types.Assessment, error) {
	res, err := a.analyzer.AnalyzeImage(img)
	if err != nil {
		return nil, err
	}
	return &types.Assessment{
		Method:  types.MethodLocal,
		Verdict: res.Verdict,
		Quality: res.Quality,
		Local:   res,
	}, nil
}

func (a *Analyzer) vision(ctx context.Context, img image.Image) (*types.Assessment, error) {
	b64, err := a.processor.PrepareImageForModel(img, a.send.Format, a.send.MaxDimension, a.send.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok && a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	res, err := a.scorer.Score(ctx, b64)
	if err != nil {
		return nil, err
	}
	return &types.Assessment{
		Method:  types.MethodVision,
		Verdict: res.Verdict,
		Quality: visionscore.TierFor(res.Score),
		Vision:  res,
	}, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
