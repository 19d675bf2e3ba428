package worker

import (
	"context"
	"errors"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
)

// Supervisor restarts a long-running task when it stops, with exponential
// backoff between attempts.
type Supervisor struct {
	Logger         *log.Logger
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Run calls task until ctx is cancelled. Validation errors are returned
// at once since a restart cannot fix them.
func (s Supervisor) Run(ctx context.Context, name string, task func(context.Context) error) error {
	logger := s.Logger
	if logger == nil {
		logger = log.ForComponent(log.ComponentWorker)
	}
	initial, limit := s.InitialBackoff, s.MaxBackoff
	if initial <= 0 {
		initial = time.Second
	}
	if limit < initial {
		limit = initial
	}

	backoff := initial
	for {
		started := time.Now()
		err := task(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		// A task that ran for a while earns a fresh backoff.
		if time.Since(started) > limit {
			backoff = initial
		}
		logger.ErrorContext(ctx, "Task stopped, restarting",
			"task", name, log.FieldError, err, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff = min(backoff*2, limit)
	}
}

// Every calls fn now and then at every tick of interval until ctx is
// cancelled.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() == nil {
				fn(ctx)
			}
		}
	}
}
