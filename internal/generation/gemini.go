package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hyperengineering/compass/internal/types"
)

// Compile-time interface check
var _ Generator = (*Gemini)(nil)

// ContentGenerator is the subset of genai.Models used by Gemini.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements Generator using the Gemini API.
type Gemini struct {
	models      ContentGenerator
	model       string
	maxTokens   int
	temperature float64
}

// NewGemini creates a Gemini generator backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string, maxTokens int, temperature float64) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &Gemini{
		models:      client.Models,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Generate sends the history and content with the instructions as the system
// instruction.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Content, genai.RoleUser))

	temp := float32(g.temperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Instructions, genai.RoleUser),
		Temperature:       &temp,
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.maxTokens)
	}

	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", upstreamError("gemini", err)
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", upstreamError("gemini", errors.New("empty reply"))
	}
	return text, nil
}

// ModelName returns the Gemini model name.
func (g *Gemini) ModelName() string {
	return g.model
}
