package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/campaign-studio/internal/apperr"
)

const (
	// DefaultFalBaseURL is the fal.ai queue endpoint.
	DefaultFalBaseURL = "https://queue.fal.run"
	// DefaultFalModel is the model used when none is configured.
	DefaultFalModel = "fal-ai/flux-realism"
	// DefaultTimeout bounds each HTTP call to the provider.
	DefaultTimeout = 30 * time.Second
)

// maxErrorBody limits how much of an error response is kept for logs.
const maxErrorBody = 2048

// ProviderError describes a failed call to the generation provider. It is
// kept as the cause of the apperr.Error returned to callers.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fal %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("fal %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// FalConfig configures a FalClient.
type FalConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// FalClient implements Client over the fal.ai queue REST API.
type FalClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewFalClient creates a FalClient, filling unset fields with defaults.
func NewFalClient(cfg FalConfig) *FalClient {
	if cfg.Model == "" {
		cfg.Model = DefaultFalModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFalBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &FalClient{
		apiKey:  cfg.APIKey,
		model:   strings.Trim(cfg.Model, "/"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

// appID is the owner/name part of the model path. Status and result
// endpoints live under it even when the model has a sub-path.
func (c *FalClient) appID() string {
	parts := strings.SplitN(c.model, "/", 3)
	if len(parts) < 2 {
		return c.model
	}
	return parts[0] + "/" + parts[1]
}

type submitRequest struct {
	Prompt            string    `json:"prompt"`
	GuidanceScale     float64   `json:"guidance_scale"`
	NumInferenceSteps int       `json:"num_inference_steps"`
	ImageSize         imageSize `json:"image_size"`
}

type imageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type resultResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Submit implements Client.
func (c *FalClient) Submit(ctx context.Context, params Params) (string, error) {
	params = params.WithDefaults()
	body, err := json.Marshal(submitRequest{
		Prompt:            params.Prompt,
		GuidanceScale:     params.GuidanceScale,
		NumInferenceSteps: params.InferenceSteps,
		ImageSize:         imageSize{Width: params.Width, Height: params.Height},
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to encode generation request", err)
	}

	status, data, err := c.do(ctx, http.MethodPost, c.baseURL+"/"+c.model, body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "image provider unavailable",
			&ProviderError{Op: "submit", Cause: err})
	}
	if status < 200 || status > 299 {
		return "", apperr.Wrap(apperr.KindSubmission, "image generation request was rejected",
			&ProviderError{Op: "submit", StatusCode: status, Body: truncate(data)})
	}

	var resp submitResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.RequestID == "" {
		return "", apperr.Wrap(apperr.KindSubmission, "image provider returned no request id",
			&ProviderError{Op: "submit", StatusCode: status, Body: truncate(data), Cause: err})
	}
	return resp.RequestID, nil
}

// PollStatus implements Client.
func (c *FalClient) PollStatus(ctx context.Context, id string) (State, error) {
	data, err := c.get(ctx, "status", c.requestURL(id)+"/status")
	if err != nil {
		return "", err
	}
	var resp statusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "image provider returned an invalid status",
			&ProviderError{Op: "status", Body: truncate(data), Cause: err})
	}
	return NormalizeStatus(resp.Status), nil
}

// FetchResult implements Client.
func (c *FalClient) FetchResult(ctx context.Context, id string) (*string, error) {
	data, err := c.get(ctx, "result", c.requestURL(id))
	if err != nil {
		return nil, err
	}
	var resp resultResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "image provider returned an invalid result",
			&ProviderError{Op: "result", Body: truncate(data), Cause: err})
	}
	if len(resp.Images) == 0 || resp.Images[0].URL == "" {
		return nil, nil
	}
	ref := resp.Images[0].URL
	return &ref, nil
}

func (c *FalClient) requestURL(id string) string {
	return c.baseURL + "/" + c.appID() + "/requests/" + url.PathEscape(id)
}

// get performs a read call and maps HTTP failures to error kinds.
func (c *FalClient) get(ctx context.Context, op, u string) ([]byte, error) {
	status, data, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "image provider unavailable",
			&ProviderError{Op: op, Cause: err})
	}
	switch {
	case status == http.StatusNotFound:
		return nil, apperr.Wrap(apperr.KindNotFound, "generation request not found",
			&ProviderError{Op: op, StatusCode: status, Body: truncate(data)})
	case status < 200 || status > 299:
		return nil, apperr.Wrap(apperr.KindUnavailable, "image provider unavailable",
			&ProviderError{Op: op, StatusCode: status, Body: truncate(data)})
	}
	return data, nil
}

func (c *FalClient) do(ctx context.Context, method, u string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

func truncate(data []byte) string {
	if len(data) > maxErrorBody {
		return string(data[:maxErrorBody])
	}
	return string(data)
}
