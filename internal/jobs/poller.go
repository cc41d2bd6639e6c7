// internal/jobs/poller.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is one observation of a remote job, as reported by the provider.
type State struct {
	Status    string
	Message   string
	Terminal  bool
	Succeeded bool
}

// SubmitFunc starts a remote job and returns its opaque identifier.
type SubmitFunc func(ctx context.Context) (string, error)

// StatusFunc queries the provider for the current state of a job.
type StatusFunc func(ctx context.Context, id string) (State, error)

// Result is the terminal outcome of a polled job. Message carries the
// provider-supplied text verbatim.
type Result struct {
	JobID   string
	Status  string
	Message string
}

// ErrJobFailed wraps a terminal-failure result returned by Wait.
var ErrJobFailed = errors.New("remote job failed")

// ErrExhausted is returned when MaxAttempts observations all came back
// non-terminal.
var ErrExhausted = errors.New("polling attempts exhausted")

// Poller repeatedly queries a remote job at a fixed interval until it
// observes a terminal state. Interval and MaxAttempts bound the wait; the
// context cancels it.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

const (
	DefaultInterval    = 15 * time.Second
	DefaultMaxAttempts = 240
)

func NewPoller(interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{Interval: interval, MaxAttempts: maxAttempts}
}

// Run submits a job of the given kind and waits for it to reach a terminal
// state.
func (p *Poller) Run(ctx context.Context, kind Kind, submit SubmitFunc, status StatusFunc) (Result, error) {
	id, err := submit(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("submit %s job: %w", kind, err)
	}
	return p.Wait(ctx, NewJob(kind, id), status)
}

// Wait polls an already-submitted job until the provider reports a terminal
// state, recording each observation on the job. It returns exactly once per
// terminal observation: a Result carrying the job identifier and final
// status on success, or an error wrapping ErrJobFailed (with the provider
// message preserved on the Result) on terminal failure. Non-terminal
// observations suspend for Interval between queries; after MaxAttempts of
// them Wait gives up with ErrExhausted.
func (p *Poller) Wait(ctx context.Context, job *Job, status StatusFunc) (Result, error) {
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{JobID: job.ID}, ctx.Err()
			case <-time.After(p.Interval):
			}
		}

		st, err := status(ctx, job.ID)
		if err != nil {
			return Result{JobID: job.ID}, fmt.Errorf("query %s job %s: %w", job.Kind, job.ID, err)
		}
		job.Apply(st)
		if !job.Done {
			continue
		}

		res := Result{JobID: job.ID, Status: job.Status, Message: job.Message}
		if !st.Succeeded {
			return res, fmt.Errorf("%w: %s job %s ended %s: %s", ErrJobFailed, job.Kind, job.ID, job.Status, job.Message)
		}
		return res, nil
	}
	return Result{JobID: job.ID}, fmt.Errorf("%w: %s job %s after %d attempts", ErrExhausted, job.Kind, job.ID, p.MaxAttempts)
}
