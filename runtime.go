// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package hearth

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/hearth/internal/try"
	"github.com/z5labs/hearth/lifecycle"

	"golang.org/x/sync/errgroup"
)

// Runtime is anything that runs until its context is cancelled, e.g. an [App].
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a func variant of [Runtime].
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PanicError is returned by a [Recover] wrapped [Runtime] which panicked.
// It unwraps to the panic value when that value is an error.
type PanicError = try.PanicError

// Recover will wrap the given [Runtime] with panic recovery. A recovered
// panic is returned as a [PanicError].
func Recover(rt Runtime) Runtime {
	return RuntimeFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return rt.Run(ctx)
	})
}

// WithSignalNotifications wraps a given [Runtime] in an implementation
// that cancels the [context.Context] that's passed to rt.Run if an [os.Signal]
// is received by the running process.
func WithSignalNotifications(rt Runtime, signals ...os.Signal) Runtime {
	return RuntimeFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return rt.Run(sigCtx)
	})
}

// WithLifecycleHooks makes lc available to rt through [lifecycle.FromContext]
// and runs its post run hooks once rt returns, even if it panics.
func WithLifecycleHooks(rt Runtime, lc *lifecycle.Context) Runtime {
	return RuntimeFunc(func(ctx context.Context) (err error) {
		defer runPostRunHook(ctx, lc, &err)

		return rt.Run(lifecycle.NewContext(ctx, lc))
	})
}

func runPostRunHook(ctx context.Context, lc *lifecycle.Context, err *error) {
	// hooks must still run if ctx was cancelled to stop the runtime
	hookErr := lc.PostRun().Run(context.WithoutCancel(ctx))

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}

// Concurrently runs every [Runtime] until one fails or ctx is cancelled,
// e.g. the [App] alongside a certificate reload watcher.
func Concurrently(rts ...Runtime) Runtime {
	return RuntimeFunc(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, rt := range rts {
			rt := rt
			g.Go(func() error {
				return rt.Run(gctx)
			})
		}
		return g.Wait()
	})
}
