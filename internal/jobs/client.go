package jobs

import "context"

// Default generation parameters applied to omitted knobs.
const (
	DefaultGuidanceScale  = 3.5
	DefaultInferenceSteps = 28
	DefaultWidth          = 768
	DefaultHeight         = 768
)

// Params describes one image generation request. Zero values mean
// "use the default".
type Params struct {
	Prompt         string  `json:"prompt" validate:"required"`
	GuidanceScale  float64 `json:"guidanceScale" validate:"omitempty,gt=0,lte=20"`
	InferenceSteps int     `json:"inferenceSteps" validate:"omitempty,min=1,max=100"`
	Width          int     `json:"width" validate:"omitempty,min=64,max=2048"`
	Height         int     `json:"height" validate:"omitempty,min=64,max=2048"`
}

// WithDefaults returns a copy of p with defaults filled in.
func (p Params) WithDefaults() Params {
	if p.GuidanceScale == 0 {
		p.GuidanceScale = DefaultGuidanceScale
	}
	if p.InferenceSteps == 0 {
		p.InferenceSteps = DefaultInferenceSteps
	}
	if p.Width == 0 {
		p.Width = DefaultWidth
	}
	if p.Height == 0 {
		p.Height = DefaultHeight
	}
	return p
}

// Client is a generation queue keyed by provider-issued request IDs.
type Client interface {
	// Submit enqueues a request and returns its ID without waiting.
	Submit(ctx context.Context, params Params) (string, error)
	// PollStatus returns the current normalized state of id.
	PollStatus(ctx context.Context, id string) (State, error)
	// FetchResult returns the first result reference of id, or nil when
	// the provider has none.
	FetchResult(ctx context.Context, id string) (*string, error)
}
