// Package runs deduplicates concurrent sync runs. Callers asking for the
// same division while a run is in flight share that run's outcome instead of
// starting another.
package runs

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Coordinator collapses concurrent runs keyed by division.
type Coordinator struct {
	group singleflight.Group
}

// New returns an empty coordinator.
func New() *Coordinator {
	return &Coordinator{}
}

// Division runs fn for one division, joining an in-flight run for the same
// division if one exists. It reports whether the outcome was shared with
// another caller. The run is detached from the caller's cancellation: a run
// shared between callers must not abort because the one that started it went
// away. Context values still flow through.
func (c *Coordinator) Division(ctx context.Context, division int64, fn func(ctx context.Context) error) (bool, error) {
	return c.do(ctx, "division:"+strconv.FormatInt(division, 10), fn)
}

// Full runs fn as the single whole-league run, joining an in-flight one.
func (c *Coordinator) Full(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	return c.do(ctx, "full", fn)
}

func (c *Coordinator) do(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	runCtx := context.WithoutCancel(ctx)
	_, err, shared := c.group.Do(key, func() (interface{}, error) {
		return nil, fn(runCtx)
	})
	return shared, err
}
