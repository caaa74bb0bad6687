package util

import (
	"context"
	"time"
)

// Retry calls the provided function fn up to maxRetries times with exponential backoff. It gives up early when ctx is done.
func Retry[T any](ctx context.Context, fn func(attempt uint) (T, error), maxRetries uint, initialDelay time.Duration) (T, error) {
	var val T
	var err error

	for i := range maxRetries {
		val, err = fn(i)
		if err == nil {
			return val, nil
		}
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return val, ctx.Err()
			case <-time.After(initialDelay << i):
			}
		}
	}
	return val, err
}
