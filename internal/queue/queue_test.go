package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mohammad-safakhou/cowrite/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueNeverExceedsLimit(t *testing.T) {
	t.Parallel()
	const limit, total = 3, 20
	q := New("search", limit)

	var running, peak atomic.Int64
	tasks := make([]*Task, 0, total)
	for i := 0; i < total; i++ {
		i := i
		tasks = append(tasks, q.Submit(context.Background(), func(context.Context) (any, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return i, nil
		}))
	}

	for i, task := range tasks {
		v, err := task.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Equal(t, 0, q.InFlight())
	assert.Equal(t, 0, q.Waiting())
}

func TestAdmittedTaskSurvivesSubmitterCancel(t *testing.T) {
	t.Parallel()
	q := New("generation", 1)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	var taskCtxErr error
	task := q.Submit(ctx, func(taskCtx context.Context) (any, error) {
		close(started)
		<-release
		taskCtxErr = taskCtx.Err()
		return "done", nil
	})

	<-started
	cancel()
	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled, "the wait is abandoned")

	close(release)
	v, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.NoError(t, taskCtxErr)
}

func TestWaitingTaskIsWithdrawnOnCancel(t *testing.T) {
	t.Parallel()
	q := New("search", 1)

	release := make(chan struct{})
	first := q.Submit(context.Background(), func(context.Context) (any, error) {
		<-release
		return 1, nil
	})
	require.Eventually(t, func() bool { return q.InFlight() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	second := q.Submit(ctx, func(context.Context) (any, error) {
		ran.Store(true)
		return 2, nil
	})
	require.Eventually(t, func() bool { return q.Waiting() == 1 }, time.Second, time.Millisecond)
	cancel()

	<-second.Done()
	_, err := second.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotAdmitted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())

	close(release)
	_, err = first.Wait(context.Background())
	require.NoError(t, err)
}

func TestTaskFailureOnlyReachesItsWaiter(t *testing.T) {
	t.Parallel()
	q := New("generation", 2)
	boom := errors.New("provider down")

	bad := q.Submit(context.Background(), func(context.Context) (any, error) { return nil, boom })
	good := q.Submit(context.Background(), func(context.Context) (any, error) { return "ok", nil })
	panicky := q.Submit(context.Background(), func(context.Context) (any, error) { panic("nil map") })

	_, err := bad.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	v, err := good.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = panicky.Wait(context.Background())
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "generation", pe.Queue)
}

func TestDoReturnsTypedResult(t *testing.T) {
	t.Parallel()
	q := Unbounded("search")
	got, err := Do(context.Background(), q, func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = Do(context.Background(), q, func(context.Context) (int, error) { return 0, errors.New("quota") })
	assert.EqualError(t, err, "quota")
}

func TestUnboundedRunsEverythingAtOnce(t *testing.T) {
	t.Parallel()
	q := Unbounded("search")
	const total = 8

	var wg sync.WaitGroup
	wg.Add(total)
	tasks := make([]*Task, total)
	for i := range tasks {
		tasks[i] = q.Submit(context.Background(), func(context.Context) (any, error) {
			wg.Done()
			wg.Wait() // only returns once every task is running
			return nil, nil
		})
	}
	for _, task := range tasks {
		_, err := task.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 0, q.Limit())
}

func TestQueueMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	q := New("search", 1, WithRegisterer(reg))

	_, err := q.Submit(context.Background(), func(context.Context) (any, error) { return nil, nil }).Wait(context.Background())
	require.NoError(t, err)
	_, err = q.Submit(context.Background(), func(context.Context) (any, error) { return nil, errors.New("x") }).Wait(context.Background())
	require.Error(t, err)

	m := q.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("search", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflightGauge.WithLabelValues("search")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.waitingGauge.WithLabelValues("search")))
}

func TestNewSet(t *testing.T) {
	t.Parallel()
	set := NewSet(config.QueuesConfig{SearchConcurrency: 2})
	assert.Equal(t, SearchQueue, set.Search.Name())
	assert.Equal(t, 2, set.Search.Limit())
	assert.Equal(t, DefaultConcurrency, set.Generation.Limit())

	free := NewUnboundedSet()
	assert.Equal(t, 0, free.Search.Limit())
	assert.Equal(t, 0, free.Generation.Limit())
}
