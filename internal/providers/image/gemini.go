package image

import (
	"context"

	"server/internal/providers/genai"
)

// GenerateRequest describes one image to produce.
type GenerateRequest struct {
	Prompt    string
	RequestID string
}

// Asset is a generated image.
type Asset struct {
	URL  string
	MIME string
	Data []byte
}

// Generator produces images from prompts.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}

// GeminiGenerator generates images through the genai client.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator wraps the shared client for a specific model.
func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		Model:     g.model,
		Prompt:    req.Prompt,
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Asset{URL: asset.URL, MIME: asset.MIME, Data: asset.Data}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
