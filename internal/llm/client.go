// Package llm sends chat completions to an OpenAI-compatible inference API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"slmchat/internal/domain"
)

const DefaultBaseURL = "https://router.huggingface.co/v1"

var (
	ErrAPIKeyNotSet = errors.New("inference API key not set")
	ErrNoChoices    = errors.New("no completion choices returned")
)

// Request is one chat completion call. APIKey is sent per request so one
// client can serve many sessions with different credentials.
type Request struct {
	APIKey      string
	Model       string
	Messages    []domain.Message
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// ChatClient produces assistant text for a request.
type ChatClient interface {
	// Stream drains a streamed completion and returns the concatenated deltas.
	Stream(ctx context.Context, req Request) (string, error)
	// Complete runs a single non-streamed completion.
	Complete(ctx context.Context, req Request) (string, error)
}

// Client is a ChatClient backed by openai-go. It never retries.
type Client struct {
	client  openai.Client
	timeout time.Duration
}

// Config configures the inference client.
type Config struct {
	BaseURL string
	// Timeout of zero means the call blocks until the server answers.
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		client: openai.NewClient(
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(0),
		),
		timeout: cfg.Timeout,
	}
}

func (c *Client) Stream(ctx context.Context, req Request) (string, error) {
	params, opts, err := c.build(req)
	if err != nil {
		return "", err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stream := c.client.Chat.Completions.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			b.WriteString(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("streaming completion failed: %w", err)
	}
	return b.String(), nil
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	params, opts, err := c.build(req)
	if err != nil {
		return "", err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) build(req Request) (openai.ChatCompletionNewParams, []option.RequestOption, error) {
	if req.APIKey == "" {
		return openai.ChatCompletionNewParams{}, nil, ErrAPIKeyNotSet
	}
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.Model),
		Messages:    toParams(req.Messages),
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params, []option.RequestOption{option.WithAPIKey(req.APIKey)}, nil
}

func toParams(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
