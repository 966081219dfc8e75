package job

import (
	"context"
	"errors"
	"time"

	"github.com/ncobase/runpod/logging/logger"
)

// Poll bounds
const (
	DefaultPollInterval = time.Second
	MinPollInterval     = 250 * time.Millisecond
	MaxPollInterval     = 10 * time.Second

	DefaultPollTimeout = 60 * time.Second
	MinPollTimeout     = 5 * time.Second
	MaxPollTimeout     = 600 * time.Second
)

// PollOptions are the caller-supplied wait settings. Zero means default,
// anything outside the bounds is clamped.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Normalize returns the effective settings.
func (o PollOptions) Normalize() PollOptions {
	return PollOptions{
		Interval: clamp(o.Interval, DefaultPollInterval, MinPollInterval, MaxPollInterval),
		Timeout:  clamp(o.Timeout, DefaultPollTimeout, MinPollTimeout, MaxPollTimeout),
	}
}

func clamp(d, def, lo, hi time.Duration) time.Duration {
	switch {
	case d <= 0:
		return def
	case d < lo:
		return lo
	case d > hi:
		return hi
	}
	return d
}

// PollState is the progress of one async job.
type PollState struct {
	JobID     string
	StartedAt time.Time
	Interval  time.Duration
	Timeout   time.Duration
	Attempts  int
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits on a timer, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller submits an async job and polls it until COMPLETED, FAILED or the
// time budget runs out. The budget starts before the submit request.
type Poller struct {
	client *Client
	clock  Clock
	sleep  SleepFunc
	log    *logger.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock injects the time source.
func WithClock(c Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithSleep injects the wait function.
func WithSleep(s SleepFunc) PollerOption {
	return func(p *Poller) { p.sleep = s }
}

// WithPollerLogger sets the logger for state transitions.
func WithPollerLogger(l *logger.Logger) PollerOption {
	return func(p *Poller) { p.log = l }
}

// NewPoller creates a poller using client for all provider calls.
func NewPoller(client *Client, opts ...PollerOption) *Poller {
	p := &Poller{
		client: client,
		clock:  SystemClock,
		sleep:  Sleep,
		log:    logger.StdLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run submits req and waits for a terminal state. On success the COMPLETED
// status reply is returned; there are no partial results.
func (p *Poller) Run(ctx context.Context, req JobRequest, apiKey string, opts PollOptions) (*JobResponse, error) {
	opts = opts.Normalize()
	state := PollState{
		StartedAt: p.clock.Now(),
		Interval:  opts.Interval,
		Timeout:   opts.Timeout,
	}

	p.log.Debug(ctx, "job submitting", "model_id", req.ModelID, "interval", state.Interval.String(), "timeout", state.Timeout.String())
	submitted, err := p.client.SubmitAsync(ctx, req, apiKey)
	if err != nil {
		return nil, err
	}
	if submitted.ID == "" {
		return nil, &ProtocolError{Reason: "Failed to start async job - no job ID returned"}
	}
	state.JobID = submitted.ID
	p.log.Debug(ctx, "job polling", "job_id", state.JobID, "status", string(submitted.Status))

	for {
		if elapsed := p.clock.Now().Sub(state.StartedAt); elapsed >= state.Timeout {
			return nil, p.timedOut(ctx, &state, elapsed)
		}

		state.Attempts++
		resp, err := p.client.GetStatus(ctx, req.ModelID, state.JobID, apiKey)
		if err != nil {
			return nil, err
		}
		p.log.Debug(ctx, "job status", "job_id", state.JobID, "attempt", state.Attempts, "status", string(resp.Status))

		switch resp.Status {
		case StatusCompleted:
			if err := resp.Check(); err != nil {
				return nil, err
			}
			p.log.Debug(ctx, "job succeeded", "job_id", state.JobID, "attempt", state.Attempts)
			return resp, nil
		case StatusFailed:
			p.log.Debug(ctx, "job failed", "job_id", state.JobID, "attempt", state.Attempts)
			return nil, &JobFailedError{JobID: state.JobID, Response: resp}
		}

		elapsed := p.clock.Now().Sub(state.StartedAt)
		remaining := state.Timeout - elapsed
		if remaining <= 0 {
			return nil, p.timedOut(ctx, &state, elapsed)
		}
		if err := p.sleep(ctx, min(state.Interval, remaining)); err != nil {
			return nil, p.interrupted(ctx, &state, err)
		}
	}
}

func (p *Poller) timedOut(ctx context.Context, state *PollState, elapsed time.Duration) error {
	p.log.Debug(ctx, "job timed out", "job_id", state.JobID, "attempt", state.Attempts, "elapsed", elapsed.String())
	return &TimeoutError{JobID: state.JobID, Elapsed: elapsed}
}

// interrupted codes a wait ended by the caller's context.
func (p *Poller) interrupted(ctx context.Context, state *PollState, err error) error {
	elapsed := p.clock.Now().Sub(state.StartedAt)
	p.log.Debug(ctx, "job wait interrupted", "job_id", state.JobID, "attempt", state.Attempts, "error", err)
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{JobID: state.JobID, Elapsed: elapsed, Err: err}
	}
	return &CancelledError{JobID: state.JobID, Err: err}
}
