// Package panicerr converts panics in pooled workers into ordinary errors,
// so one misbehaving test case aborts its run instead of the process.
package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// SafeContext wraps a context-taking function so that a panic inside it is
// recovered and returned as an error. The function's own error wins when both
// occur.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn(ctx)
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}
