package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bdobrica/yui/common/redact"
	"github.com/bdobrica/yui/common/retry"
	"github.com/bdobrica/yui/common/version"
)

const (
	defaultOpenRouterBase  = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "openai/gpt-4o"

	// maxErrorBody bounds the response excerpt kept in a StatusError.
	maxErrorBody = 512
)

// ErrStatus matches every StatusError.
var ErrStatus = errors.New("remote: unexpected HTTP status")

// StatusError is a non-200 answer from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// --- minimal chat completions wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// OpenRouter calls the OpenRouter chat completions endpoint over plain HTTP.
// Safe for concurrent use.
type OpenRouter struct {
	cfg    Config
	client *http.Client
	retry  retry.Config
}

// NewOpenRouter returns an OpenRouter client.
func NewOpenRouter(cfg Config) *OpenRouter {
	cfg = cfg.withDefaults(defaultOpenRouterBase, defaultOpenRouterModel)
	return &OpenRouter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.Backoff,
			MaxDelay:     retry.DefaultConfig.MaxDelay,
		},
	}
}

// NewOpenRouterResponder returns the OpenRouter backend.
func NewOpenRouterResponder(cfg Config, logger *slog.Logger) *Adapter {
	return NewAdapter(OpenRouterName, OpenRouterApology, NewOpenRouter(cfg), redact.New(cfg.APIKey), logger)
}

// Complete implements backend.Completer.
func (o *OpenRouter) Complete(ctx context.Context, prompt string) (string, error) {
	data, err := json.Marshal(chatRequest{
		Model:     o.cfg.Model,
		MaxTokens: o.cfg.MaxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("openrouter: marshal request: %w", err)
	}

	var text string
	err = retry.Do(ctx, o.retry, func() error {
		var err error
		text, err = o.post(ctx, data)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	return text, nil
}

// post performs one attempt. Errors that a retry cannot fix are marked
// permanent.
func (o *OpenRouter) post(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(o.cfg.BaseURL, "/")+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create http request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Title", "Yui")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{Code: resp.StatusCode, Body: excerpt(body)}
		if serr.Transient() {
			return "", serr
		}
		return "", retry.Permanent(serr)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if out.Error != nil {
		return "", retry.Permanent(fmt.Errorf("API error: %s", out.Error.Message))
	}
	if len(out.Choices) == 0 {
		return "", retry.Permanent(errors.New("no choices returned"))
	}
	return out.Choices[0].Message.Content, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "…"
	}
	return s
}
