// Package llm defines the chat completion capability used to generate answers.
package llm

import (
	"context"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/apiclient"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
)

// Message roles understood by chat completion APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat prompt.
type Message struct {
	Role    string
	Content string
}

// Options tunes a single completion.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer produces a reply for an ordered list of messages.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	ModelName() string
}

var _ Completer = (*OpenAIChat)(nil)

// OpenAIChat is a Completer backed by an OpenAI-compatible chat completions endpoint.
type OpenAIChat struct {
	client *openai.Client
	caller *apiclient.Caller
	model  string
}

// NewOpenAIChat creates a chat client from cfg.
func NewOpenAIChat(cfg *config.LLMConfig, logger *zap.Logger) *OpenAIChat {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiCfg := apiclient.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	return &OpenAIChat{
		client: apiclient.NewOpenAIClient(apiCfg),
		caller: apiclient.NewCaller(models.ErrLLMUnavailable, apiCfg, apiclient.WithLogger(logger)),
		model:  cfg.Model,
	}
}

// Complete sends messages to the model and returns the first choice.
func (c *OpenAIChat) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	// go-openai drops a zero temperature from the payload, which the API reads as 1.0.
	if opts.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var resp openai.ChatCompletionResponse
	err := c.caller.Do(ctx, "create chat completion", func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &models.CapabilityError{
			Capability: models.ErrLLMUnavailable,
			Op:         "create chat completion",
			Err:        fmt.Errorf("response has no choices"),
		}
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the configured model.
func (c *OpenAIChat) ModelName() string {
	return c.model
}
