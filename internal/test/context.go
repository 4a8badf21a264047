package test

import (
	"context"
	"time"
)

// DefaultTimeout is the timeout used by [Context] and the channel
// expectations.
const DefaultTimeout = 5 * time.Second

// Context returns a context that is canceled when the test completes, or after
// [DefaultTimeout] elapses.
//
// If t provides its own context, such as [testing.T] does, the returned context
// is derived from it.
func Context(t TestingT) context.Context {
	t.Helper()

	parent := context.Background()
	if c, ok := t.(interface{ Context() context.Context }); ok {
		parent = c.Context()
	}

	ctx, cancel := context.WithTimeout(parent, DefaultTimeout)
	t.Cleanup(cancel)

	return ctx
}
