package openai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/processing"
)

const backendName = "openai"

// Config holds the chat completion parameters
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// Detail is the image_url detail hint: low, high or auto
	Detail  string
	Timeout time.Duration
}

// DefaultConfig returns gpt-4o at temperature 0.3 with high image detail
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		Temperature: 0.3,
		MaxTokens:   4096,
		Detail:      string(goopenai.ImageURLDetailHigh),
		Timeout:     2 * time.Minute,
	}
}

// Client sends prepared photos to an OpenAI-compatible chat completion API
type Client struct {
	client    *goopenai.Client
	processor *processing.Processor
	config    Config
}

// NewClient creates a new OpenAI vision client. A missing API key is only
// reported when Analyze is called.
func NewClient(config Config, processor *processing.Processor) *Client {
	def := DefaultConfig()
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	if config.Detail == "" {
		config.Detail = def.Detail
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if processor == nil {
		processor = processing.NewProcessor(processing.DefaultOptions())
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &Client{
		client:    goopenai.NewClientWithConfig(clientConfig),
		processor: processor,
		config:    config,
	}
}

// Name identifies the backend
func (c *Client) Name() string {
	return backendName
}

// Analyze prepares img and asks the model about it
func (c *Client) Analyze(ctx context.Context, img image.Image, prompt string) (*client.Response, error) {
	if c.config.APIKey == "" {
		return nil, client.NewError(backendName, client.KindAuth, errors.New("missing API key"))
	}

	prepared, err := c.processor.Prepare(img)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req := goopenai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL:    prepared.DataURL(),
							Detail: goopenai.ImageURLDetail(c.config.Detail),
						},
					},
				},
			},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, client.NewError(backendName, client.KindMalformedResponse, errors.New("no content in response"))
	}

	return &client.Response{
		Text: resp.Choices[0].Message.Content,
		Sent: prepared.Image,
		Usage: client.Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:  int64(resp.Usage.TotalTokens),
		},
	}, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return client.FromStatus(backendName, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return client.FromStatus(backendName, reqErr.HTTPStatusCode, err)
	}
	return client.Transport(backendName, err)
}
