package runs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwdcp/ESEADivisions/internal/pipeline/runs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDivisionDeduplication(t *testing.T) {
	Convey("Given several concurrent requests for the same division", t, func() {
		coordinator := runs.New()

		var started atomic.Int64
		var sharedCount atomic.Int64
		run := func(_ context.Context) error {
			started.Add(1)
			time.Sleep(100 * time.Millisecond)
			return nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				shared, err := coordinator.Division(context.Background(), 500, run)
				if err == nil && shared {
					sharedCount.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Only one run executes and every caller shares it", func() {
			So(started.Load(), ShouldEqual, 1)
			So(sharedCount.Load(), ShouldEqual, 4)
		})
	})

	Convey("Given requests for different divisions", t, func() {
		coordinator := runs.New()

		var started atomic.Int64
		run := func(_ context.Context) error {
			started.Add(1)
			time.Sleep(50 * time.Millisecond)
			return nil
		}

		var wg sync.WaitGroup
		for _, division := range []int64{500, 501} {
			division := division
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = coordinator.Division(context.Background(), division, run)
			}()
		}
		wg.Wait()

		Convey("Each division gets its own run", func() {
			So(started.Load(), ShouldEqual, 2)
		})
	})
}

func TestSharedFailure(t *testing.T) {
	Convey("Given a shared run that fails", t, func() {
		coordinator := runs.New()
		boom := errors.New("boom")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = coordinator.Division(context.Background(), 500, func(_ context.Context) error {
					time.Sleep(50 * time.Millisecond)
					return boom
				})
			}()
		}
		wg.Wait()

		Convey("Every caller observes the same error", func() {
			So(errs[0], ShouldEqual, boom)
			So(errs[1], ShouldEqual, boom)
		})
	})
}

func TestRunOutlivesStartingCaller(t *testing.T) {
	Convey("Given a run whose starting caller goes away mid-flight", t, func() {
		coordinator := runs.New()

		startCtx, cancelStarter := context.WithCancel(context.Background())
		entered := make(chan struct{})
		release := make(chan struct{})

		var enterOnce sync.Once
		var runErr error
		run := func(ctx context.Context) error {
			enterOnce.Do(func() { close(entered) })
			<-release
			runErr = ctx.Err()
			return runErr
		}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[0] = coordinator.Division(startCtx, 500, run)
		}()
		<-entered

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[1] = coordinator.Division(context.Background(), 500, run)
		}()

		cancelStarter()
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		Convey("The run finishes uncancelled and every caller sees success", func() {
			So(runErr, ShouldBeNil)
			So(errs[0], ShouldBeNil)
			So(errs[1], ShouldBeNil)
		})
	})
}

func TestSequentialRunsAreSeparate(t *testing.T) {
	Convey("Given two runs for the same division one after the other", t, func() {
		coordinator := runs.New()

		var started atomic.Int64
		run := func(_ context.Context) error {
			started.Add(1)
			return nil
		}

		_, err1 := coordinator.Division(context.Background(), 500, run)
		_, err2 := coordinator.Division(context.Background(), 500, run)

		Convey("Both execute", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(started.Load(), ShouldEqual, 2)
		})
	})
}
