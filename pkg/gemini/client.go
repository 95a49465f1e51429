package gemini

import (
	"context"
	"errors"
	"fmt"
	"image"

	"google.golang.org/genai"

	"github.com/menta2k/declutter/pkg/client"
	"github.com/menta2k/declutter/pkg/processing"
)

const (
	backendName  = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

// Config holds the Gemini generation parameters
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
	// BaseURL overrides the API endpoint, mostly for tests
	BaseURL string
}

// Client sends prepared photos to the Gemini API
type Client struct {
	client    *genai.Client
	processor *processing.Processor
	config    Config
}

// NewClient creates a Gemini vision client
func NewClient(ctx context.Context, config Config, processor *processing.Processor) (*Client, error) {
	if config.APIKey == "" {
		return nil, client.NewError(backendName, client.KindAuth, errors.New("missing API key"))
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if processor == nil {
		processor = processing.NewProcessor(processing.DefaultOptions())
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: gc, processor: processor, config: config}, nil
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

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		{InlineData: &genai.Blob{Data: prepared.Data, MIMEType: prepared.MIMEType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{MaxOutputTokens: c.config.MaxTokens}
	if c.config.Temperature > 0 {
		config.Temperature = genai.Ptr(c.config.Temperature)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, config)
	if err != nil {
		return nil, classify(err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, client.NewError(backendName, client.KindMalformedResponse, errors.New("no candidates in response"))
	}

	resp := &client.Response{Text: result.Text(), Sent: prepared.Image}
	if result.UsageMetadata != nil {
		resp.Usage = client.Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(result.UsageMetadata.TotalTokenCount),
		}
	}
	return resp, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return client.FromStatus(backendName, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code > 0 {
		return client.FromStatus(backendName, apiErrPtr.Code, err)
	}
	return client.Transport(backendName, err)
}
