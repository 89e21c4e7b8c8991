package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAI summarizes through the chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	sanitizer *Sanitizer
	maxTokens int
}

// NewOpenAI creates a summarizer. baseURL may be empty to use the public API.
func NewOpenAI(apiKey, baseURL, model string, s *Sanitizer, maxTokens int) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		sanitizer: s,
		maxTokens: maxTokens,
	}
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) Summarize(ctx context.Context, title, content string) (string, error) {
	prompt, err := Prompt(o.sanitizer, title, content, o.maxTokens)
	if err != nil {
		return "", err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   o.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	summary := cleanSummary(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("empty summary from OpenAI")
	}
	return summary, nil
}
