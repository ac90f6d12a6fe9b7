package util

import (
	"context"
	"errors"
	"time"
)

// Backoff controls how often and how fast Retry tries again. The delay
// doubles after each failed attempt up to Max.
type Backoff struct {
	Tries int
	Delay time.Duration
	Max   time.Duration
}

// StartupBackoff is used while dependencies such as Postgres or RabbitMQ
// may still be booting next to the service.
var StartupBackoff = Backoff{Tries: 10, Delay: 500 * time.Millisecond, Max: 10 * time.Second}

// Retry calls fn until it succeeds, the tries are used up or ctx is done.
// Context errors returned by fn end the loop immediately. The last error is
// returned.
func Retry[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	tries := max(b.Tries, 1)
	delay := b.Delay

	var lastErr error
	for i := range tries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err

		if i == tries-1 || delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return zero, lastErr
}

// RetryErr is Retry for functions without a result.
func RetryErr(ctx context.Context, b Backoff, fn func(context.Context) error) error {
	_, err := Retry(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
