package client

import (
	"context"
	"image"
)

// Usage reports token consumption when the backend exposes it
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Response is the raw model reply together with the exact image that was
// transmitted, after resizing and grid annotation.
type Response struct {
	Text  string
	Sent  image.Image
	Usage Usage
}

// VisionClient sends one image and one prompt to a vision model
type VisionClient interface {
	Analyze(ctx context.Context, img image.Image, prompt string) (*Response, error)
}
