// Package chat answers one conversational turn with the client's context.
// It keeps no state between requests.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/compass/internal/fetch"
	"github.com/hyperengineering/compass/internal/generation"
	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/render"
	"github.com/hyperengineering/compass/internal/types"
)

// DefaultWindow is the trailing period of history included as chat context.
const DefaultWindow = 14 * 24 * time.Hour

// ContextSeparator precedes the rendered document appended to the user message.
const ContextSeparator = "\n\n---\nCLIENT CONTEXT\n"

// ContextFetcher fetches history without failing.
type ContextFetcher interface {
	FetchContext(ctx context.Context, q fetch.Query) *fetch.RecordSet
}

// Request is one conversational turn.
type Request struct {
	ClientID string
	Message  string
	History  []types.ChatTurn
	Audience types.Audience // empty selects the coach audience
}

// Reply is the generated answer.
type Reply struct {
	Text     string
	Audience types.Audience
}

// Orchestrator builds context for a turn and calls the generator.
type Orchestrator struct {
	fetcher   ContextFetcher
	renderer  *render.Renderer
	generator generation.Generator
	window    time.Duration
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. A non-positive window uses DefaultWindow.
func NewOrchestrator(fetcher ContextFetcher, renderer *render.Renderer, generator generation.Generator, window time.Duration) *Orchestrator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Orchestrator{
		fetcher:   fetcher,
		renderer:  renderer,
		generator: generator,
		window:    window,
		now:       time.Now,
	}
}

// Reply answers req. Context retrieval never blocks the reply: any fetch
// failure yields a sparser document. Generation errors are returned wrapped.
func (o *Orchestrator) Reply(ctx context.Context, req Request) (*Reply, error) {
	audience := req.Audience
	if audience == "" {
		audience = types.AudienceCoach
	}
	policy := redaction.Tier(audience)

	end := o.now().UTC()
	rs := o.fetcher.FetchContext(ctx, fetch.Query{
		ClientID: req.ClientID,
		Window:   types.Window{Start: end.Add(-o.window), End: end},
		Policy:   policy,
	})
	if rs == nil {
		rs = &fetch.RecordSet{}
	}
	doc := o.renderer.Render(rs, policy)

	text, err := o.generator.Generate(ctx, generation.Request{
		Instructions: generation.InstructionsFor(policy.Audience),
		History:      req.History,
		Content:      AugmentMessage(req.Message, doc),
	})
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	slog.Debug("chat reply generated",
		"component", "chat",
		"client_id", req.ClientID,
		"audience", string(policy.Audience),
		"history_turns", len(req.History),
		"context_bytes", len(doc),
		"failed_sources", rs.Failed,
	)

	return &Reply{Text: text, Audience: policy.Audience}, nil
}

// AugmentMessage appends the context document to the user's message.
func AugmentMessage(message, document string) string {
	return message + ContextSeparator + document
}
