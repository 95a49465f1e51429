package ollama

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/processing"
)

const backendName = "ollama"

// Client wraps the Ollama API client
type Client struct {
	client      *api.Client
	processor   *processing.Processor
	model       string
	temperature float64
	timeout     time.Duration
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL, model string, temperature float64, processor *processing.Processor) (*Client, error) {
	// Parse the provided URL
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", ollamaURL)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	if processor == nil {
		processor = processing.NewProcessor(processing.DefaultOptions())
	}

	return &Client{
		// ignore OLLAMA_HOST, the configured URL wins
		client:      api.NewClient(baseURL, http.DefaultClient),
		processor:   processor,
		model:       model,
		temperature: temperature,
		timeout:     300 * time.Second, // 5 minutes for CPU processing
	}, nil
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

	// Add timeout if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(prepared.Data)},
			},
		},
		Stream:  &streamFalse,
		Options: modelOptions(c.model, c.temperature),
		// No Format field - let the prompt guide the format
	}

	var (
		content string
		usage   client.Usage
	)
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		if resp.Done {
			usage = client.Usage{
				InputTokens:  int64(resp.PromptEvalCount),
				OutputTokens: int64(resp.EvalCount),
				TotalTokens:  int64(resp.PromptEvalCount + resp.EvalCount),
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if strings.TrimSpace(content) == "" {
		return nil, client.NewError(backendName, client.KindMalformedResponse, errors.New("empty response from ollama"))
	}

	return &client.Response{Text: content, Sent: prepared.Image, Usage: usage}, nil
}

// modelOptions sets sampling parameters, with tuning for MiniCPM-V 4.x
func modelOptions(model string, temperature float64) map[string]any {
	options := map[string]any{}
	if temperature > 0 {
		options["temperature"] = temperature
	}

	modelLower := strings.ToLower(model)
	if strings.Contains(modelLower, "minicpm-v4") ||
		strings.Contains(modelLower, "minicpm-v-4") ||
		strings.Contains(modelLower, "minicpmv4") {
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}
	return options
}

func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return client.FromStatus(backendName, statusErr.StatusCode, err)
	}
	return client.Transport(backendName, err)
}
