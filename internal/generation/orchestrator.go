// Package generation drives image generation jobs for callers: submit,
// check status, or wait for a terminal outcome.
package generation

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/jobs"
	"github.com/rs/zerolog"
)

// Handle identifies a submitted request.
type Handle struct {
	RequestID string `json:"requestId"`
}

// Status is the outcome of one status check. ResultURL is only set when
// Status is completed.
type Status struct {
	RequestID string     `json:"-"`
	Status    jobs.State `json:"status"`
	ResultURL *string    `json:"resultUrl,omitempty"`
}

// PollPolicy bounds Await. A zero MaxAttempts or MaxDuration means no
// bound of that kind.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	MaxDuration time.Duration
}

// DefaultPollPolicy polls every 2s for at most 5 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:    2 * time.Second,
		MaxAttempts: 150,
		MaxDuration: 5 * time.Minute,
	}
}

// Orchestrator is stateless: every call rebuilds what it needs from the
// request ID, so it is safe to share between goroutines.
type Orchestrator struct {
	client jobs.Client
	logger zerolog.Logger
}

// NewOrchestrator creates an Orchestrator over client.
func NewOrchestrator(client jobs.Client, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{client: client, logger: logger}
}

// Submit enqueues params and returns without waiting for the job.
func (o *Orchestrator) Submit(ctx context.Context, params jobs.Params) (*Handle, error) {
	id, err := o.client.Submit(ctx, params)
	if err != nil {
		return nil, o.userError("submit", "", err)
	}
	o.logger.Info().Str("request_id", id).Msg("generation submitted")
	return &Handle{RequestID: id}, nil
}

// Status polls the provider once and, when the job has completed, fetches
// its result.
func (o *Orchestrator) Status(ctx context.Context, id string) (*Status, error) {
	if id == "" {
		return nil, apperr.New(apperr.KindValidation, "request id is required")
	}
	state, err := o.client.PollStatus(ctx, id)
	if err != nil {
		return nil, o.userError("status", id, err)
	}
	return o.resolve(ctx, id, state)
}

func (o *Orchestrator) resolve(ctx context.Context, id string, state jobs.State) (*Status, error) {
	st := &Status{RequestID: id, Status: state}
	if state != jobs.StateCompleted {
		return st, nil
	}
	ref, err := o.client.FetchResult(ctx, id)
	if err != nil {
		return nil, o.userError("result", id, err)
	}
	st.ResultURL = ref
	return st, nil
}

// Await polls id until the job reaches a terminal state. A job that fails
// is returned as a Status, not an error. Running out of attempts or time
// yields a timed_out error.
func (o *Orchestrator) Await(ctx context.Context, id string, policy PollPolicy) (*Status, error) {
	if id == "" {
		return nil, apperr.New(apperr.KindValidation, "request id is required")
	}
	waitCtx := ctx
	if policy.MaxDuration > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, policy.MaxDuration)
		defer cancel()
	}

	job := jobs.NewJob(id)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; policy.MaxAttempts <= 0 || attempt <= policy.MaxAttempts; attempt++ {
		if waitCtx.Err() != nil {
			return nil, o.waitError(ctx, id, attempt-1)
		}
		select {
		case <-waitCtx.Done():
			return nil, o.waitError(ctx, id, attempt-1)
		case <-timer.C:
		}

		state, err := o.client.PollStatus(waitCtx, id)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, o.waitError(ctx, id, attempt)
			}
			return nil, o.userError("status", id, err)
		}
		if err := job.Advance(state); err != nil {
			o.logger.Debug().Err(err).Str("request_id", id).Msg("ignoring provider state regression")
		}

		if job.State.Terminal() {
			st, err := o.resolve(waitCtx, id, job.State)
			if err != nil {
				return nil, err
			}
			if st.Status == jobs.StateCompleted {
				_ = job.Complete(st.ResultURL)
			}
			o.logger.Info().Str("request_id", id).Str("status", string(job.State)).Int("polls", attempt).Msg("generation finished")
			return st, nil
		}
		timer.Reset(policy.Interval)
	}

	return nil, apperr.Newf(apperr.KindTimedOut, "generation did not finish after %d status checks", policy.MaxAttempts)
}

func (o *Orchestrator) waitError(ctx context.Context, id string, polls int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.logger.Warn().Str("request_id", id).Int("polls", polls).Msg("generation wait timed out")
	return apperr.New(apperr.KindTimedOut, "generation did not finish in time")
}

// userError logs the provider detail of err and returns an error that only
// carries its kind and message.
func (o *Orchestrator) userError(op, id string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		o.logger.Warn().Err(err).Str("op", op).Str("request_id", id).Msg("image provider call timed out")
		return apperr.New(apperr.KindTimedOut, "image provider did not respond in time")
	}
	o.logger.Error().Err(err).Str("op", op).Str("request_id", id).Msg("image provider call failed")

	e, ok := apperr.As(err)
	if !ok {
		return apperr.New(apperr.KindUnavailable, "image provider unavailable")
	}
	return apperr.New(e.Kind, e.Message)
}
