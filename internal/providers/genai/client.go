// Package genai provides a thin facade over the generative media API so the
// image and video generators can focus on translating domain requests. All
// calls go through the retry engine; 429 and 5xx responses are retried,
// everything else surfaces immediately.
package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"server/internal/retry"
)

const defaultTimeout = 120 * time.Second

// Options controls how the client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Client wraps the provider's HTTP API.
type Client struct {
	http       *resty.Client
	maxRetries int
	retryBase  time.Duration
	logger     zerolog.Logger
}

// NewClient configures a provider client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("genai: base url is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		httpClient.SetHeader("x-goog-api-key", opts.APIKey)
	}
	return &Client{http: httpClient, maxRetries: opts.MaxRetries, logger: opts.Logger}, nil
}

// ImageRequest represents the information required to generate one image.
type ImageRequest struct {
	Model     string
	Prompt    string
	RequestID string
}

// VideoRequest represents the information required to generate a video.
type VideoRequest struct {
	Model           string
	Prompt          string
	DurationSeconds int
	IncludeAudio    bool
	RequestID       string
}

// Asset is the normalized representation of a generated media item.
type Asset struct {
	URL             string
	MIME            string
	DurationSeconds int
	Data            []byte
}

// ProviderError is a permanent rejection from the provider. It is never
// retried; Code distinguishes content-policy rejections from other failures.
type ProviderError struct {
	Code    string
	Status  int
	Message string
}

const (
	// CodeContentRejected marks a content-policy/safety rejection.
	CodeContentRejected = "content_rejected"
	// CodeProviderRejected marks any other permanent provider failure.
	CodeProviderRejected = "provider_rejected"
)

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected request (%s, http %d): %s", e.Code, e.Status, e.Message)
}

type generateRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	IncludeAudio    bool   `json:"includeAudio,omitempty"`
	RequestID       string `json:"requestId,omitempty"`
}

type generateResponse struct {
	Assets []struct {
		URL             string `json:"url"`
		MIMEType        string `json:"mimeType"`
		DurationSeconds int    `json:"durationSeconds"`
		InlineData      []byte `json:"inlineData,omitempty"`
	} `json:"assets"`
	Error *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateImage produces a single image.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Asset, error) {
	body := generateRequest{Prompt: req.Prompt, RequestID: req.RequestID}
	return c.generate(ctx, req.Model, "generateImage", body)
}

// GenerateVideo produces a single video clip.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*Asset, error) {
	body := generateRequest{
		Prompt:          req.Prompt,
		DurationSeconds: req.DurationSeconds,
		IncludeAudio:    req.IncludeAudio,
		RequestID:       req.RequestID,
	}
	return c.generate(ctx, req.Model, "generateVideo", body)
}

func (c *Client) generate(ctx context.Context, model, method string, body generateRequest) (*Asset, error) {
	if model == "" {
		return nil, fmt.Errorf("genai: model is required")
	}
	path := fmt.Sprintf("/models/%s:%s", model, method)

	opts := retry.Options{
		MaxRetries: c.maxRetries,
		BaseDelay:  c.retryBase,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Str("model", model).Msg("genai: retrying after transient failure")
		},
	}
	resp, err := retry.DoRequest(ctx, opts, func(ctx context.Context) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&generateResponse{}).
			SetError(&generateResponse{}).
			Post(path)
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, classifyRejection(resp)
	}

	out, ok := resp.Result().(*generateResponse)
	if !ok || len(out.Assets) == 0 {
		return nil, fmt.Errorf("genai: empty response for model %s", model)
	}
	a := out.Assets[0]
	return &Asset{URL: a.URL, MIME: a.MIMEType, DurationSeconds: a.DurationSeconds, Data: a.InlineData}, nil
}

// classifyRejection maps a 4xx response to a permanent ProviderError.
func classifyRejection(resp *resty.Response) error {
	perr := &ProviderError{Code: CodeProviderRejected, Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	if out, ok := resp.Error().(*generateResponse); ok && out != nil && out.Error != nil {
		perr.Message = out.Error.Message
		status := strings.ToUpper(out.Error.Status)
		msg := strings.ToLower(out.Error.Message)
		if status == "SAFETY" || strings.Contains(msg, "safety") || strings.Contains(msg, "content policy") || strings.Contains(msg, "blocked") {
			perr.Code = CodeContentRejected
		}
	}
	return perr
}
