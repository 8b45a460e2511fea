// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs a fixed set of tasks to completion.
package fixedpool

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/hearth/internal/try"
)

// Task is a unit of work run by [Wait].
type Task func(context.Context) error

// Wait runs every task in its own goroutine and blocks until all of them
// return. The first failing task cancels the context shared by the others.
// All task errors, including recovered panics, are joined together.
func Wait(ctx context.Context, tasks ...Task) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	errCh := make(chan error, len(tasks))

	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()

			err := run(ctx, t)
			if err == nil {
				return
			}
			errCh <- err
			cancel(err)
		}(task)
	}

	wg.Wait()
	close(errCh)

	var jerr error
	for err := range errCh {
		jerr = errors.Join(jerr, err)
	}
	return jerr
}

func run(ctx context.Context, t Task) (err error) {
	defer try.Recover(&err)

	return t(ctx)
}
