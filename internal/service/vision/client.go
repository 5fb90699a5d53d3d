// Package vision sends a JPEG frame to an external image-understanding model
// and returns its free-text answer. One attempt per call, no retry.
package vision

import (
	"context"
	"errors"
	"fmt"

	"birdwatch/internal/config"
	"birdwatch/internal/logger"
)

// ErrAnalysisService wraps every transport or service failure of a backend.
var ErrAnalysisService = errors.New("analysis service error")

// Client is implemented by each model backend.
type Client interface {
	Analyze(ctx context.Context, jpeg []byte) (string, error)
	Close() error
}

// New builds the backend selected by config.VisionProvider.
func New(cfg *config.Config, logger *logger.Logger) (Client, error) {
	prompt := Prompt(cfg.PromptLanguage)
	logger.Info("Vision backend: %s (model %s, prompt %s)", cfg.VisionProvider, cfg.VisionModel, cfg.PromptLanguage)

	switch cfg.VisionProvider {
	case config.ProviderGemini:
		return NewGemini(cfg, prompt)
	case config.ProviderOpenAI:
		return NewOpenAI(cfg, prompt), nil
	case config.ProviderOllama:
		return NewOllama(cfg, prompt)
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.VisionProvider)
	}
}

func serviceError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrAnalysisService, provider, err)
}
