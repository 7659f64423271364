package video

import (
	"context"

	"server/internal/providers/genai"
)

// GenerateRequest describes one video clip to produce.
type GenerateRequest struct {
	Prompt          string
	Model           string
	DurationSeconds int
	IncludeAudio    bool
	RequestID       string
}

// Asset is a generated video clip.
type Asset struct {
	URL             string
	MIME            string
	DurationSeconds int
	Data            []byte
}

// Generator produces video clips from prompts.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}

// GeminiGenerator generates videos through the genai client.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator wraps the shared client. The model travels per request
// because brands configure their own default video model.
func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	asset, err := g.client.GenerateVideo(ctx, genai.VideoRequest{
		Model:           req.Model,
		Prompt:          req.Prompt,
		DurationSeconds: req.DurationSeconds,
		IncludeAudio:    req.IncludeAudio,
		RequestID:       req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	out := &Asset{URL: asset.URL, MIME: asset.MIME, DurationSeconds: asset.DurationSeconds, Data: asset.Data}
	if out.DurationSeconds == 0 {
		out.DurationSeconds = req.DurationSeconds
	}
	return out, nil
}

var _ Generator = (*GeminiGenerator)(nil)
