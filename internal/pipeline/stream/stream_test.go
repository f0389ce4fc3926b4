package stream_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fwdcp/ESEADivisions/internal/pipeline/stream"
	. "github.com/smartystreets/goconvey/convey"
)

func TestProcessAll(t *testing.T) {
	Convey("Given a source of five records", t, func() {
		src := stream.FromSlice([]int{1, 2, 3, 4, 5})

		var mu sync.Mutex
		var seen []int

		completed, err := stream.Process(context.Background(), src, func(_ context.Context, n int) error {
			mu.Lock()
			seen = append(seen, n)
			mu.Unlock()
			return nil
		}, stream.WithConcurrency(2))

		Convey("Every record is handled exactly once", func() {
			So(err, ShouldBeNil)
			So(completed, ShouldEqual, 5)
			So(len(seen), ShouldEqual, 5)
		})
	})
}

func TestProcessFirstError(t *testing.T) {
	Convey("Given a handler that fails on the third record", t, func() {
		boom := errors.New("boom")

		Convey("With full admission, started handlers run to completion", func() {
			src := stream.FromSlice([]int{1, 2, 3, 4, 5})
			completed, err := stream.Process(context.Background(), src, func(_ context.Context, n int) error {
				if n == 3 {
					time.Sleep(200 * time.Millisecond)
					return boom
				}
				time.Sleep(10 * time.Millisecond)
				return nil
			}, stream.WithConcurrency(5))

			So(err, ShouldEqual, boom)
			So(completed, ShouldEqual, 4)
		})

		Convey("With serial admission, later records are never admitted", func() {
			var mu sync.Mutex
			var handled []int

			src := stream.FromSlice([]int{1, 2, 3, 4, 5})
			completed, err := stream.Process(context.Background(), src, func(_ context.Context, n int) error {
				mu.Lock()
				handled = append(handled, n)
				mu.Unlock()
				if n == 3 {
					return boom
				}
				return nil
			}, stream.WithConcurrency(1))

			So(err, ShouldEqual, boom)
			So(completed, ShouldEqual, 2)
			So(handled, ShouldResemble, []int{1, 2, 3})
		})
	})
}

func TestProcessSourceError(t *testing.T) {
	Convey("Given a source that fails mid-stream", t, func() {
		src := &failingSource{failAt: 3}

		completed, err := stream.Process(context.Background(), src, func(_ context.Context, _ int) error {
			return nil
		}, stream.WithConcurrency(1))

		Convey("The source error surfaces with the completed count", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "cursor failed")
			So(completed, ShouldEqual, 2)
			So(src.closed, ShouldBeTrue)
		})
	})
}

func TestProcessEmpty(t *testing.T) {
	Convey("Given an empty source", t, func() {
		completed, err := stream.Process(context.Background(), stream.FromSlice[int](nil), func(_ context.Context, _ int) error {
			return errors.New("never called")
		})

		Convey("Nothing runs and no error is returned", func() {
			So(err, ShouldBeNil)
			So(completed, ShouldEqual, 0)
		})
	})
}

type failingSource struct {
	n      int
	failAt int
	closed bool
}

func (s *failingSource) Next(_ context.Context) (int, bool, error) {
	s.n++
	if s.n >= s.failAt {
		return 0, false, errors.New("cursor failed")
	}
	return s.n, true, nil
}

func (s *failingSource) Close(_ context.Context) error {
	s.closed = true
	return nil
}
