package main

import (
	"fmt"

	imagequality "github.com/menta2k/image-quality"
	"github.com/menta2k/image-quality/internal/config"
	"github.com/menta2k/image-quality/internal/logging"
	"github.com/menta2k/image-quality/internal/quota"
	"github.com/menta2k/image-quality/pkg/client"
	"github.com/menta2k/image-quality/pkg/llamacpp"
	"github.com/menta2k/image-quality/pkg/ollama"
	"github.com/menta2k/image-quality/pkg/types"
)

// newVisionClient builds the client for the configured backend
func newVisionClient(rc config.RemoteConfig) (client.VisionClient, error) {
	switch rc.Backend {
	case config.BackendOllama:
		c, err := ollama.NewClient(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		if rc.APIKey != "" {
			c.WithAPIKey(rc.APIKey)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", rc.Backend)
	}
}

// newAnalyzer assembles the facade from cfg. The vision client is only
// created when method needs it.
func newAnalyzer(cfg *config.Config, method types.Method) (*imagequality.Analyzer, error) {
	opts := []imagequality.Option{
		imagequality.WithLogger(logging.WithComponent("analyzer")),
		imagequality.WithSendOptions(imagequality.SendOptions{
			MaxDimension: cfg.Remote.SendSize,
			Quality:      cfg.Remote.SendQuality,
			Format:       cfg.Remote.SendFormat,
		}),
		imagequality.WithVisionTimeout(cfg.Remote.Timeout),
	}

	if method == types.MethodVision {
		vc, err := newVisionClient(cfg.Remote)
		if err != nil {
			return nil, err
		}
		opts = append(opts, imagequality.WithVisionClient(vc, cfg.Remote.Model))
	}

	if cfg.Quota.Limit > 0 {
		var store quota.Store = quota.NewMemoryStore()
		if cfg.Quota.StorePath != "" {
			store = quota.NewFileStore(cfg.Quota.StorePath)
		}
		opts = append(opts, imagequality.WithQuota(quota.NewLimiter(store, cfg.Quota.Limit), cfg.Quota.Key))
	}

	return imagequality.NewWithConfig(cfg.AnalyzerConfig(), opts...), nil
}
