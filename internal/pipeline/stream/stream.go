// Package stream walks cursor-backed record sequences with bounded
// concurrency. Sequences are forward-only; restarting means re-issuing the
// underlying query.
package stream

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default cap on concurrently active handlers.
const DefaultConcurrency = 10

// Source yields records one at a time. Next returns false once the sequence
// is exhausted.
type Source[T any] interface {
	Next(ctx context.Context) (T, bool, error)
	Close(ctx context.Context) error
}

// Handler processes a single record and may perform further suspending I/O.
type Handler[T any] func(ctx context.Context, record T) error

// config carries processing options.
type config struct {
	concurrency int
}

// Option applies a configuration option to Process.
type Option func(*config)

// WithConcurrency caps concurrently active handlers.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Process applies handler to every record of src with at most K handlers
// active at once. On the first handler error no further records are admitted,
// but handlers already started run to completion. It returns the count of
// records handled successfully and the first error, if any.
func Process[T any](ctx context.Context, src Source[T], handler Handler[T], opts ...Option) (int, error) {
	cfg := config{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	defer func() { _ = src.Close(ctx) }()

	var completed atomic.Int64
	var failed atomic.Bool

	var group errgroup.Group
	group.SetLimit(cfg.concurrency)

	var sourceErr error
	for !failed.Load() {
		record, ok, err := src.Next(ctx)
		if err != nil {
			sourceErr = err
			break
		}
		if !ok {
			break
		}

		group.Go(func() error {
			// A record admitted while the failure flag was being set is
			// dropped rather than handled; the run is failing either way.
			if failed.Load() {
				return nil
			}
			if err := handler(ctx, record); err != nil {
				failed.Store(true)
				return err
			}
			completed.Add(1)
			return nil
		})
	}

	err := group.Wait()
	if err == nil {
		err = sourceErr
	}
	return int(completed.Load()), err
}

// sliceSource adapts an in-memory slice to Source.
type sliceSource[T any] struct {
	items []T
	next  int
}

// FromSlice wraps a slice in a Source. Useful for fixed working sets and
// tests; persistence cursors implement Source directly.
func FromSlice[T any](items []T) Source[T] {
	return &sliceSource[T]{items: items}
}

func (s *sliceSource[T]) Next(_ context.Context) (T, bool, error) {
	var zero T
	if s.next >= len(s.items) {
		return zero, false, nil
	}
	item := s.items[s.next]
	s.next++
	return item, true, nil
}

func (s *sliceSource[T]) Close(_ context.Context) error { return nil }
