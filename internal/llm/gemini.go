package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini summarizes through the Gemini API. Token counting still uses the
// configured tiktoken encoding, which is close enough for budgeting.
type Gemini struct {
	client    *genai.Client
	model     string
	sanitizer *Sanitizer
	maxTokens int
}

func NewGemini(ctx context.Context, apiKey, model string, s *Sanitizer, maxTokens int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{client: client, model: model, sanitizer: s, maxTokens: maxTokens}, nil
}

func (g *Gemini) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Summarize(ctx context.Context, title, content string) (string, error) {
	prompt, err := Prompt(g.sanitizer, title, content, g.maxTokens)
	if err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.model)
	model.SetMaxOutputTokens(int32(g.maxTokens))
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	summary := cleanSummary(b.String())
	if summary == "" {
		return "", fmt.Errorf("empty summary from Gemini")
	}
	return summary, nil
}
