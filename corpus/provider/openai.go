// Package provider wraps the remote chat-completion API used for extraction.
package provider

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.3
)

// ErrEmptyCompletion is returned when the API answers without any content.
var ErrEmptyCompletion = errors.New("empty completion content")

// Completion is one model answer plus its token usage.
type Completion struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
}

// Completer issues a single JSON-object chat completion. Implementations do
// not retry; callers wrap them in a RetryPolicy.
type Completer interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}

// ChatConfig configures a ChatClient.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	// Temperature nil means DefaultTemperature; 0 is sent as is.
	Temperature *float64
	Timeout     time.Duration
}

// ChatClient talks to an OpenAI-compatible /chat/completions endpoint.
type ChatClient struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewChatClient builds a client. SDK-level retries are disabled.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("NewChatClient: api key is empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cmp.Or(cfg.BaseURL, DefaultBaseURL)),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	client := openai.NewClient(opts...)
	return &ChatClient{
		client:      &client,
		model:       cmp.Or(cfg.Model, DefaultModel),
		temperature: temperature,
	}, nil
}

func (c *ChatClient) Model() string { return c.model }

func (c *ChatClient) Complete(ctx context.Context, system, user string) (Completion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	out := Completion{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return out, ErrEmptyCompletion
	}
	out.Content = resp.Choices[0].Message.Content
	return out, nil
}
