package generation

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/hyperengineering/compass/internal/config"
	"github.com/hyperengineering/compass/internal/types"
)

// mockContentGenerator implements ContentGenerator for testing
type mockContentGenerator struct {
	response *genai.GenerateContentResponse
	err      error

	callCount    int
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (m *mockContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.callCount++
	m.lastModel = model
	m.lastContents = contents
	m.lastConfig = cfg
	return m.response, m.err
}

func geminiResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func TestGemini_Generate(t *testing.T) {
	mock := &mockContentGenerator{response: geminiResponse("A steady week.")}
	gen := &Gemini{models: mock, model: "gemini-2.0-flash", maxTokens: 512, temperature: 0.3}

	got, err := gen.Generate(context.Background(), Request{
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
	if got != "A steady week." {
		t.Errorf("Generate() = %q", got)
	}

	if mock.lastModel != "gemini-2.0-flash" {
		t.Errorf("model = %q", mock.lastModel)
	}
	if len(mock.lastContents) != 3 {
		t.Fatalf("contents = %d, want 3", len(mock.lastContents))
	}
	wantRoles := []string{string(genai.RoleUser), string(genai.RoleModel), string(genai.RoleUser)}
	for i, c := range mock.lastContents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
	if mock.lastContents[2].Parts[0].Text != "latest" {
		t.Errorf("last content = %q, want latest", mock.lastContents[2].Parts[0].Text)
	}
	if mock.lastConfig.SystemInstruction.Parts[0].Text != "system" {
		t.Error("instructions not sent as system instruction")
	}
	if mock.lastConfig.MaxOutputTokens != 512 {
		t.Errorf("MaxOutputTokens = %d, want 512", mock.lastConfig.MaxOutputTokens)
	}
}

func TestGemini_ErrorIsUpstream(t *testing.T) {
	originalErr := errors.New("unavailable")
	gen := &Gemini{models: &mockContentGenerator{err: originalErr}, model: "m"}

	_, err := gen.Generate(context.Background(), Request{Content: "x"})
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, originalErr) {
		t.Errorf("error = %v, want ErrUpstream wrapping original", err)
	}
}

func TestGemini_EmptyReplyIsUpstream(t *testing.T) {
	gen := &Gemini{models: &mockContentGenerator{response: &genai.GenerateContentResponse{}}, model: "m"}

	_, err := gen.Generate(context.Background(), Request{Content: "x"})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	gen, err := New(context.Background(), config.GenerationConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o", OpenAIAPIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New(openai) error = %v", err)
	}
	if _, ok := gen.(*OpenAI); !ok {
		t.Errorf("New(openai) = %T, want *OpenAI", gen)
	}

	gen, err = New(context.Background(), config.GenerationConfig{Provider: config.ProviderGemini, Model: "gemini-2.0-flash", GeminiAPIKey: "gm-test"})
	if err != nil {
		t.Fatalf("New(gemini) error = %v", err)
	}
	if _, ok := gen.(*Gemini); !ok {
		t.Errorf("New(gemini) = %T, want *Gemini", gen)
	}
	if gen.ModelName() != "gemini-2.0-flash" {
		t.Errorf("ModelName() = %q", gen.ModelName())
	}

	if _, err := New(context.Background(), config.GenerationConfig{Provider: "llama"}); err == nil {
		t.Error("New(unknown) expected error")
	}
}
