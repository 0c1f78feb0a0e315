package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/compass/internal/types"
)

// Compile-time interface check
var _ Generator = (*OpenAI)(nil)

// CompletionsService defines the interface for making chat completion calls.
// This abstraction enables testing without calling the real OpenAI API.
type CompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements Generator using OpenAI chat completions.
type OpenAI struct {
	completions CompletionsService
	model       openai.ChatModel
	maxTokens   int
	temperature float64
}

// NewOpenAI creates a new OpenAI generator.
func NewOpenAI(apiKey, model string, maxTokens int, temperature float64) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Generate sends the instructions, history and content as one chat completion.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	messages = append(messages, openai.SystemMessage(req.Instructions))
	for _, turn := range req.History {
		if turn.Role == types.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Content))
			continue
		}
		messages = append(messages, openai.UserMessage(turn.Content))
	}
	messages = append(messages, openai.UserMessage(req.Content))

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(o.model),
		Temperature: openai.F(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.F(int64(o.maxTokens))
	}

	resp, err := o.completions.New(ctx, params)
	if err != nil {
		return "", upstreamError("openai", err)
	}

	if len(resp.Choices) == 0 {
		return "", upstreamError("openai", errors.New("no choices returned"))
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", upstreamError("openai", errors.New("empty reply"))
	}
	return text, nil
}

// ModelName returns the chat model name.
func (o *OpenAI) ModelName() string {
	return string(o.model)
}
