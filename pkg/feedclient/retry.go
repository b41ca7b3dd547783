package feedclient

import (
	"context"
	"time"
)

const DefaultRetryDelay = 2 * time.Second

// RetryOnMediaNotReady runs call, and runs it exactly once more after delay if
// the first attempt failed with CodeMediaNotReady. Any other error, and the
// second attempt's result, are returned unchanged. If ctx ends during the
// wait, ctx.Err() is returned without a second attempt.
func RetryOnMediaNotReady[T any](ctx context.Context, delay time.Duration, call func(context.Context) (T, error)) (T, error) {
	v, err := call(ctx)
	if err == nil || !IsMediaNotReady(err) {
		return v, err
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-timer.C:
	}
	return call(ctx)
}
