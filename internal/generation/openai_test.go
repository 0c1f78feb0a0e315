package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/compass/internal/types"
)

// mockCompletionsService implements CompletionsService for testing
type mockCompletionsService struct {
	response *openai.ChatCompletion
	err      error
	// Track calls for verification
	callCount  int
	lastParams openai.ChatCompletionNewParams
}

func (m *mockCompletionsService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.callCount++
	m.lastParams = params
	return m.response, m.err
}

// Helper to create a completion with one choice
func completionWith(text string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}
}

func newTestOpenAI(mock *mockCompletionsService) *OpenAI {
	return &OpenAI{
		completions: mock,
		model:       openai.ChatModel("gpt-4o"),
		maxTokens:   1024,
		temperature: 0.4,
	}
}

func TestOpenAI_ReturnsReplyVerbatim(t *testing.T) {
	reply := "  Here is what I see this week.\n"
	mock := &mockCompletionsService{response: completionWith(reply)}
	gen := newTestOpenAI(mock)

	got, err := gen.Generate(context.Background(), Request{Instructions: CoachAssistantInstructions, Content: "How is she doing?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != reply {
		t.Errorf("Generate() = %q, want %q", got, reply)
	}
	if mock.callCount != 1 {
		t.Errorf("callCount = %d, want 1", mock.callCount)
	}
}

func TestOpenAI_MessageOrder(t *testing.T) {
	mock := &mockCompletionsService{response: completionWith("ok")}
	gen := newTestOpenAI(mock)

	_, err := gen.Generate(context.Background(), Request{
		Instructions: "system",
		History: []types.ChatTurn{
			{Role: types.RoleUser, Content: "hi"},
			{Role: types.RoleAssistant, Content: "hello"},
		},
		Content: "latest",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := mock.lastParams.Messages.Value
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4 (system, user, assistant, user)", len(msgs))
	}
	if _, ok := msgs[0].(openai.ChatCompletionSystemMessageParam); !ok {
		t.Errorf("messages[0] = %T, want system message", msgs[0])
	}
	if _, ok := msgs[1].(openai.ChatCompletionUserMessageParam); !ok {
		t.Errorf("messages[1] = %T, want user message", msgs[1])
	}
	if _, ok := msgs[2].(openai.ChatCompletionAssistantMessageParam); !ok {
		t.Errorf("messages[2] = %T, want assistant message", msgs[2])
	}
	if _, ok := msgs[3].(openai.ChatCompletionUserMessageParam); !ok {
		t.Errorf("messages[3] = %T, want user message", msgs[3])
	}

	if mock.lastParams.Model.Value != openai.ChatModel("gpt-4o") {
		t.Errorf("model = %q, want gpt-4o", mock.lastParams.Model.Value)
	}
	if mock.lastParams.MaxTokens.Value != 1024 {
		t.Errorf("max tokens = %d, want 1024", mock.lastParams.MaxTokens.Value)
	}
}

func TestOpenAI_WrapsErrorAsUpstream(t *testing.T) {
	originalErr := errors.New("429 rate limited")
	mock := &mockCompletionsService{err: originalErr}
	gen := newTestOpenAI(mock)

	_, err := gen.Generate(context.Background(), Request{Content: "x"})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("error should wrap ErrUpstream, got: %v", err)
	}
	if !errors.Is(err, originalErr) {
		t.Errorf("error should wrap original error")
	}
	if mock.callCount != 1 {
		t.Errorf("callCount = %d, want exactly one attempt", mock.callCount)
	}
}

func TestOpenAI_EmptyReplyIsUpstreamFailure(t *testing.T) {
	for name, resp := range map[string]*openai.ChatCompletion{
		"no choices": {Choices: []openai.ChatCompletionChoice{}},
		"blank":      completionWith("   \n"),
	} {
		t.Run(name, func(t *testing.T) {
			gen := newTestOpenAI(&mockCompletionsService{response: resp})
			_, err := gen.Generate(context.Background(), Request{Content: "x"})
			if !errors.Is(err, ErrUpstream) {
				t.Errorf("error = %v, want ErrUpstream", err)
			}
		})
	}
}

func TestOpenAI_CancelledContext(t *testing.T) {
	mock := &mockCompletionsService{response: completionWith("ok")}
	gen := newTestOpenAI(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, Request{Content: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

func TestOpenAI_ModelName(t *testing.T) {
	gen := newTestOpenAI(&mockCompletionsService{})
	if gen.ModelName() != "gpt-4o" {
		t.Errorf("ModelName() = %q, want gpt-4o", gen.ModelName())
	}
}

func TestInstructionsFor(t *testing.T) {
	if InstructionsFor(types.AudienceCoach) != CoachAssistantInstructions {
		t.Error("coach audience should get the assistant instructions")
	}
	if InstructionsFor(types.AudienceClient) != ClientCompanionInstructions {
		t.Error("client audience should get the companion instructions")
	}
	if !strings.Contains(ClientCompanionInstructions, "NEVER give advice") {
		t.Error("companion instructions must forbid advice")
	}
	for _, key := range []string{"client_view", "coach_view", "reflection_prompts", "next_session_questions"} {
		if !strings.Contains(NarrativeMapInstructions, key) {
			t.Errorf("narrative instructions missing key %q", key)
		}
	}
}
