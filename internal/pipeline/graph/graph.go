// Package graph schedules named tasks over an explicit dependency DAG. Tasks
// with satisfied dependencies run concurrently; a failed task skips its
// transitive dependents while unrelated branches run to completion.
package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fwdcp/ESEADivisions/pkg/logger"
	"github.com/fwdcp/ESEADivisions/pkg/metrics"
)

// Results maps task names to the values they produced.
type Results map[string]interface{}

// TaskFunc runs one task. It receives the results of every dependency that
// completed before it.
type TaskFunc func(ctx context.Context, results Results) (interface{}, error)

type task struct {
	name string
	deps []string
	fn   TaskFunc
}

// Scheduler accumulates tasks and runs them respecting dependency order.
type Scheduler struct {
	tasks  map[string]*task
	order  []string
	logger logger.Logger
}

// Option applies a configuration option to the scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:  make(map[string]*task),
		logger: logger.Get().Named("graph"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a task with its dependency names. A registration that would
// close a dependency cycle is rejected at this point; dependencies on tasks
// not yet registered are permitted and validated by Run.
func (s *Scheduler) Register(name string, deps []string, fn TaskFunc) error {
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}

	s.tasks[name] = &task{name: name, deps: deps, fn: fn}
	if cycle := s.findCycle(name); cycle != nil {
		delete(s.tasks, name)
		return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
	}
	s.order = append(s.order, name)
	return nil
}

// findCycle walks dependency edges from start and reports a path back to it,
// or nil. Edges to unregistered names are dead ends here.
func (s *Scheduler) findCycle(start string) []string {
	var path []string
	seen := make(map[string]bool)

	var walk func(name string) bool
	walk = func(name string) bool {
		t, ok := s.tasks[name]
		if !ok || seen[name] {
			return false
		}
		seen[name] = true
		path = append(path, name)
		for _, dep := range t.deps {
			if dep == start {
				path = append(path, start)
				return true
			}
			if walk(dep) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if walk(start) {
		return path
	}
	return nil
}

type outcome struct {
	name string
	out  interface{}
	err  error
}

// Run executes every registered task. It returns the results of completed
// tasks together with the first task error, if any; tasks downstream of a
// failure are skipped, independent tasks still run.
func (s *Scheduler) Run(ctx context.Context) (Results, error) {
	for _, name := range s.order {
		for _, dep := range s.tasks[name].deps {
			if _, ok := s.tasks[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, name, dep)
			}
		}
	}

	pending := make(map[string]int, len(s.tasks))
	dependents := make(map[string][]string, len(s.tasks))
	for _, name := range s.order {
		t := s.tasks[name]
		pending[name] = len(t.deps)
		for _, dep := range t.deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	results := make(Results, len(s.tasks))
	done := make(chan outcome, len(s.tasks))
	skipped := make(map[string]bool, len(s.tasks))
	remaining := len(s.order)
	var firstErr error
	var wg sync.WaitGroup

	launch := func(name string) {
		t := s.tasks[name]
		deps := make(Results, len(t.deps))
		for _, dep := range t.deps {
			deps[dep] = results[dep]
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			out, err := t.fn(ctx, deps)
			metrics.RecordStageDuration(t.name, time.Since(start).Seconds())
			done <- outcome{name: t.name, out: out, err: err}
		}()
	}

	// Marks transitive dependents of a failed task as never-to-run and takes
	// them out of the completion count.
	var skip func(name string)
	skip = func(name string) {
		for _, dependent := range dependents[name] {
			if skipped[dependent] {
				continue
			}
			skipped[dependent] = true
			remaining--
			s.logger.Debug(ctx, "task skipped", logger.String("task", dependent), logger.String("after", name))
			skip(dependent)
		}
	}

	for _, name := range s.order {
		if pending[name] == 0 {
			launch(name)
		}
	}

	for remaining > 0 {
		o := <-done
		remaining--

		if o.err != nil {
			metrics.RecordStageFailure(o.name)
			s.logger.Error(ctx, "task failed", logger.String("task", o.name), logger.Error(o.err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s: %w", ErrTaskFailed, o.name, o.err)
			}
			skip(o.name)
			continue
		}

		results[o.name] = o.out
		for _, dependent := range dependents[o.name] {
			if skipped[dependent] {
				continue
			}
			pending[dependent]--
			if pending[dependent] == 0 {
				launch(dependent)
			}
		}
	}

	wg.Wait()
	return results, firstErr
}

// Tasks reports the registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
