package reasoning

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/smarties/backend/internal/pkg/logger"
)

const systemPrompt = "You are a dietary compliance analyst. You assess whether a food product " +
	"is safe for a person's dietary restrictions. You respond with a single JSON object and " +
	"nothing else. When evidence is ambiguous you err toward caution, never toward safe."

// Client calls the hosted chat-completion service. A token-bucket limiter in
// front of it keeps request bursts inside the provider quota.
type Client struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	log     *logger.Logger
}

// Config configures the reasoning client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // empty means the provider default
	RatePerMin int
}

// NewClient creates the reasoning client.
func NewClient(config Config, log *logger.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("reasoning API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.RatePerMin <= 0 {
		config.RatePerMin = 60
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   config.Model,
		limiter: rate.NewLimiter(rate.Limit(float64(config.RatePerMin)/60.0), config.RatePerMin),
		log:     log,
	}, nil
}

// Complete sends one prompt and returns the raw response text. Temperature is
// pinned to zero; the same product and profile should produce the same
// judgment on every call.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("reasoning rate limit: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
