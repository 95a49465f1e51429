package llamacpp

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/processing"
)

const (
	backendName    = "llamacpp"
	DefaultURL     = "http://localhost:8080"
	completionPath = "/v1/chat/completions"
)

// OpenAI-compatible message format
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // Can be string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ClientOpts configures a llama.cpp server client
type ClientOpts struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to a llama.cpp server through its OpenAI-compatible endpoint
type Client struct {
	httpClient *resty.Client
	processor  *processing.Processor
	opts       ClientOpts
}

func NewClient(opts ClientOpts, processor *processing.Processor) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if processor == nil {
		processor = processing.NewProcessor(processing.DefaultOptions())
	}

	httpClient := resty.New().
		SetDebug(false).
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		})
	if opts.APIKey != "" {
		httpClient.SetAuthToken(opts.APIKey)
	}

	return &Client{httpClient: httpClient, processor: processor, opts: opts}
}

// Name identifies the backend
func (c *Client) Name() string {
	return backendName
}

// Analyze prepares img and asks the model about it
func (c *Client) Analyze(ctx context.Context, img image.Image, prompt string) (*client.Response, error) {
	prepared, err := c.processor.Prepare(img)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	req := ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: prepared.DataURL()}},
				},
			},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		Stream:      false,
	}

	result := &ChatCompletionResponse{}
	res, err := c.httpClient.NewRequest().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post(completionPath)
	if err := handleError(res, err); err != nil {
		return nil, err
	}

	text := responseText(result)
	if text == "" {
		return nil, client.NewError(backendName, client.KindMalformedResponse, errors.New("no text content in response"))
	}

	return &client.Response{
		Text: text,
		Sent: prepared.Image,
		Usage: client.Usage{
			InputTokens:  int64(result.Usage.PromptTokens),
			OutputTokens: int64(result.Usage.CompletionTokens),
			TotalTokens:  int64(result.Usage.TotalTokens),
		},
	}, nil
}

// handleError maps failing responses (>399 status code) and undecodable
// bodies onto client errors. Without it failing responses have nil error.
func handleError(res *resty.Response, err error) error {
	if err != nil {
		if res != nil && res.StatusCode() >= 200 && res.StatusCode() < 300 {
			return client.NewError(backendName, client.KindMalformedResponse, err)
		}
		return client.Transport(backendName, err)
	}
	if res.IsError() {
		body := strings.TrimSpace(res.String())
		if len(body) > 200 {
			body = body[:200]
		}
		return client.FromStatus(backendName, res.StatusCode(),
			fmt.Errorf("server returned status %d: %s", res.StatusCode(), body))
	}
	return nil
}

// responseText extracts the reply, which is either a string or a list of
// content parts
func responseText(resp *ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	switch content := resp.Choices[0].Message.Content.(type) {
	case string:
		return content
	case []any:
		for _, item := range content {
			if partMap, ok := item.(map[string]any); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}
