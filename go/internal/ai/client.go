// Package ai implements question generation, answer scoring and speech
// transcription on top of the OpenAI API.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

var (
	ErrNoAPIKey        = errors.New("openai api key not configured")
	ErrEmptyAudio      = errors.New("audio is empty")
	ErrAudioTooLarge   = errors.New("audio too large")
	ErrInvalidResponse = errors.New("invalid model response")
)

const (
	DefaultModel = "gpt-4o-mini"
	// MaxAudioBytes is the Whisper upload limit.
	MaxAudioBytes = 25 << 20
)

// Config configures the OpenAI client.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, mostly for tests.
	BaseURL    string
	MaxRetries int
}

// Client talks to OpenAI. It implements question generation, scoring and
// transcription.
type Client struct {
	client openai.Client
	model  string
}

// New builds a client. An empty API key is an error.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// completeJSON runs a JSON-mode chat completion and decodes the reply into out.
func (c *Client) completeJSON(ctx context.Context, system, prompt string, temperature float64, out any) error {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	content := completion.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
