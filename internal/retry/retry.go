// Package retry re-runs a unit of work while it fails with transient network errors.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/italolelis/politodown/internal/logctx"
	"github.com/italolelis/politodown/internal/transfer"
)

// DefaultDelay is the pause between a transient failure and the next attempt.
const DefaultDelay = 5 * time.Second

// Operation is a re-runnable unit of work. Each attempt starts from scratch.
type Operation func(ctx context.Context) error

// Invoker retries an operation with a fixed delay for as long as it fails
// with a transient error. Any other error is returned immediately.
type Invoker struct {
	// Delay between attempts. Zero means DefaultDelay.
	Delay time.Duration

	// MaxAttempts bounds the number of attempts. Zero retries forever.
	MaxAttempts uint

	// IsTransient classifies failures. Defaults to transfer.IsTransient.
	IsTransient func(error) bool

	// OnRetry is called before each pause with the failed attempt number.
	OnRetry func(err error, attempt uint, wait time.Duration)
}

// New returns an invoker with the given delay and attempt bound.
func New(delay time.Duration, maxAttempts uint) *Invoker {
	return &Invoker{Delay: delay, MaxAttempts: maxAttempts}
}

// Do runs op until it succeeds, fails fatally, exhausts MaxAttempts or ctx is done.
// The error returned is the one produced by op (or the context's cause), unwrapped
// from any retry bookkeeping.
func (i *Invoker) Do(ctx context.Context, name string, op Operation) error {
	logger := logctx.LoggerFromContext(ctx).With("operation", name)

	classify := i.IsTransient
	if classify == nil {
		classify = transfer.IsTransient
	}

	delay := i.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	var attempt uint

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++

		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return struct{}{}, backoff.Permanent(ctxErr)
		}

		if !classify(err) {
			// missing objects are the caller's call to make
			if !transfer.IsNotFound(err) {
				logger.ErrorContext(ctx, "operation failed", "attempt", attempt, "err", err)
			}

			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(i.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.WarnContext(ctx, "transient failure, retrying", "attempt", attempt, "retry_in", wait, "err", err)

			if i.OnRetry != nil {
				i.OnRetry(err, attempt, wait)
			}
		}),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}

	if ctx.Err() == nil && classify(err) {
		logger.ErrorContext(ctx, "giving up after transient failures", "attempts", attempt, "err", err)
	}

	return err
}
