package ussd

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/provider"
)

// call runs one collaborator request for feature. It bounds the request with
// timeout, converts a panic into an error and never retries. Any failure is
// returned as an *Error: KindUnregistered when the identity resolver does
// not know the caller, KindUnavailable otherwise.
//
// fn runs on its own goroutine so a collaborator that ignores ctx still
// cannot hold the turn past the timeout.
func call[T any](ctx context.Context, timeout time.Duration, feature string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
			}
		}()
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("%s call: %w", feature, ctx.Err())
	}
	if res.err == nil {
		return res.val, nil
	}
	if errors.Is(res.err, provider.ErrUnregistered) {
		return zero, &Error{Kind: KindUnregistered, Feature: feature, Cause: res.err}
	}
	return zero, &Error{Kind: KindUnavailable, Feature: feature, Cause: res.err}
}
