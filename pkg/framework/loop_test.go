package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopRunOnceOrder(t *testing.T) {
	var order []string
	rec := func(name string) Controller {
		return ControlFunc(func(cc ControlContext) error {
			order = append(order, name)
			return nil
		})
	}
	l := NewLoop()
	l.AddController(PrLvReport, rec("report"))
	l.AddController(PrLvStorage, rec("storage"))
	l.AddController(PrLvInput, ControlFunc(func(cc ControlContext) error {
		order = append(order, "input")
		cc.PostRun(rec("input-post"))
		cc.PostRunAt(PrLvReport, rec("report-post"))
		return errors.New("logged only")
	}))
	l.RunOnce(context.Background())
	require.Equal(t, []string{"input", "input-post", "storage", "report", "report-post"}, order)

	order = nil
	l.RunOnce(context.Background())
	require.Equal(t, []string{"input", "input-post", "storage", "report", "report-post"}, order)
}

func TestLoopIteration(t *testing.T) {
	var seen []uint64
	l := NewLoop()
	l.AddController(PrLvNormal, ControlFunc(func(cc ControlContext) error {
		seen = append(seen, cc.Iteration())
		require.Equal(t, PrLvNormal, cc.PriorityLevel())
		require.False(t, cc.Time().IsZero())
		return nil
	}))
	for i := 0; i < 3; i++ {
		l.RunOnce(context.Background())
	}
	require.Equal(t, []uint64{1, 2, 3}, seen)
}

func TestLoopRunTriggerNext(t *testing.T) {
	l := &Loop{Interval: time.Hour}
	ran := make(chan struct{}, 1)
	l.AddController(PrLvNormal, ControlFunc(func(cc ControlContext) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	l.TriggerNext()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-done)
}

func TestRunnerAggregatesErrors(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	r := NewRunner()
	r.Go(
		NamedRun("a", RunFunc(func(context.Context) error { return errA })),
		RunFunc(func(context.Context) error { return context.Canceled }),
		RunFunc(func(context.Context) error { return errB }),
	)
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errA))
	require.True(t, errors.Is(err, errB))
	require.Len(t, err.(*AggregatedError).Errors, 2)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errs.Add(errors.New("one"))
	require.Equal(t, "one", errs.Error())
	errs.Add(errors.New("two"))
	require.Equal(t, "multiple errors:\none\ntwo", errs.Error())
}

func TestRunUntilCanceled(t *testing.T) {
	errA := errors.New("a")
	require.Equal(t, errA, RunUntilCanceled(context.Background(), func() {}, func() error { return errA }))

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	stopped := false
	go cancel()
	err := RunUntilCanceled(ctx, func() {
		stopped = true
		close(release)
	}, func() error {
		<-release
		return errA
	})
	require.Equal(t, context.Canceled, err)
	require.True(t, stopped)
}
