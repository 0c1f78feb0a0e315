// Package generation calls the external text-generation service.
//
// A Generator makes exactly one attempt per call. There is no retry and no
// cache; cancellation comes only from the caller's context.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/compass/internal/config"
	"github.com/hyperengineering/compass/internal/types"
)

// ErrUpstream wraps every failure of the generation service, including an
// empty reply.
var ErrUpstream = errors.New("upstream generation failure")

// Request is one call to the generation service.
type Request struct {
	// Instructions is the role instruction set sent as the system prompt.
	Instructions string
	// History holds prior conversation turns, oldest first.
	History []types.ChatTurn
	// Content is the final user message.
	Content string
}

// Generator produces raw text from an instruction set and content.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	ModelName() string
}

// New builds the Generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// upstreamError wraps err as an ErrUpstream failure while keeping err reachable
// through errors.Is/As.
func upstreamError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, provider, err)
}
