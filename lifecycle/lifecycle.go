// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle lets components register work that must happen
// once a [hearth.App] has stopped serving, e.g. flushing trace exporters.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Hook is work performed relative to the execution of [hearth.App.Run].
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	var errs []error
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

// MultiHook returns a [Hook] that runs every given [Hook] in order.
// A failing hook does not stop the ones after it.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

// Context collects hooks registered while an application is being composed.
type Context struct {
	mu       sync.Mutex
	postRuns multiHook
}

// PostRun returns the composite [Hook] to execute after Run returns.
func (c *Context) PostRun() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()

	hooks := make(multiHook, len(c.postRuns))
	copy(hooks, c.postRuns)
	return hooks
}

// OnPostRun registers hook to run after Run returns. Hooks run in
// registration order, regardless of whether Run failed or panicked.
func (c *Context) OnPostRun(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.postRuns = append(c.postRuns, hook)
}

type key struct{}

var contextKey = &key{}

// NewContext returns a copy of parent carrying c.
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey, c)
}

// FromContext extracts the lifecycle [Context] stored by [NewContext].
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(contextKey).(*Context)
	return lc, ok
}
