package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/bdobrica/yui/common/redact"
	"github.com/bdobrica/yui/common/version"
)

const (
	defaultGroqBase  = "https://api.groq.com/openai/v1"
	defaultGroqModel = "llama-3.3-70b-versatile"
)

// Groq calls Groq's OpenAI-compatible API through the OpenAI SDK, which
// handles retries of transient failures itself.
type Groq struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewGroq returns a Groq client.
func NewGroq(cfg Config) *Groq {
	cfg = cfg.withDefaults(defaultGroqBase, defaultGroqModel)
	return &Groq{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithRequestTimeout(cfg.Timeout),
			option.WithMaxRetries(cfg.MaxAttempts-1),
			option.WithHeader("User-Agent", version.UserAgent()),
		),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// NewGroqResponder returns the Groq backend.
func NewGroqResponder(cfg Config, logger *slog.Logger) *Adapter {
	return NewAdapter(GroqName, GroqApology, NewGroq(cfg), redact.New(cfg.APIKey), logger)
}

// Complete implements backend.Completer.
func (g *Groq) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:     openai.ChatModel(g.model),
		MaxTokens: openai.Int(g.maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("groq: %w", &StatusError{Code: apiErr.StatusCode, Body: apiErr.Message})
		}
		return "", fmt.Errorf("groq: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
