package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/cowrite/provider"
)

type fakeProvider struct {
	name string
	out  string
	err  error

	mu    sync.Mutex
	calls []provider.Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, req provider.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.out, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestInvokerSecondarySucceeds(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", err: errors.New("connection refused")}
	secondary := &fakeProvider{name: "qwen", out: "hello"}
	inv := NewInvoker([]Strategy{
		{Name: "gemini", Provider: primary},
		{Name: "qwen", Provider: secondary},
	})

	out, err := inv.Invoke(context.Background(), provider.Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
}

func TestInvokerPrimarySuccessSkipsSecondary(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", out: "first"}
	secondary := &fakeProvider{name: "qwen", out: "second"}
	inv := NewInvoker([]Strategy{{Name: "gemini", Provider: primary}, {Name: "qwen", Provider: secondary}})

	out, err := inv.Invoke(context.Background(), provider.Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "first", out)
	assert.Equal(t, 0, secondary.callCount())
}

func TestInvokerBothFailJoinsMessages(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", err: errors.New("gemini: API returned status: 503")}
	secondary := &fakeProvider{name: "qwen", err: provider.ErrNoChoices}
	inv := NewInvoker([]Strategy{{Name: "gemini", Provider: primary}, {Name: "qwen", Provider: secondary}})

	_, err := inv.Invoke(context.Background(), provider.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API returned status: 503")
	assert.Contains(t, err.Error(), "no choices in response")

	var ie *InvokeError
	require.ErrorAs(t, err, &ie)
	require.Len(t, ie.Attempts, 2)
	assert.Equal(t, "gemini", ie.Attempts[0].Strategy)
	assert.Equal(t, "qwen", ie.Attempts[1].Strategy)
	assert.True(t, errors.Is(err, provider.ErrNoChoices))
	assert.Equal(t, 1, primary.callCount(), "no retry beyond one attempt per provider")
	assert.Equal(t, 1, secondary.callCount())
}

func TestInvokerDefaultModelOnlyWhenBlank(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "gemini", err: errors.New("down")}
	secondary := &fakeProvider{name: "qwen", out: "ok"}
	inv := NewInvoker([]Strategy{
		{Name: "gemini", Provider: primary, DefaultModel: "gemini-2.5-flash"},
		{Name: "qwen", Provider: secondary, DefaultModel: "qwen-plus"},
	})

	_, err := inv.Invoke(context.Background(), provider.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", primary.calls[0].Model)
	assert.Equal(t, "qwen-plus", secondary.calls[0].Model)

	_, err = inv.Invoke(context.Background(), provider.Request{Prompt: "p", Model: "custom", MaxTokens: 42, Temperature: provider.Temperature(0.9)})
	require.NoError(t, err)
	assert.Equal(t, "custom", primary.calls[1].Model)
	assert.Equal(t, "custom", secondary.calls[1].Model)
	assert.Equal(t, 42, secondary.calls[1].MaxTokens)
	assert.Equal(t, 0.9, *secondary.calls[1].Temperature)
}

func TestInvokerWithoutStrategies(t *testing.T) {
	t.Parallel()
	_, err := NewInvoker(nil).Invoke(context.Background(), provider.Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoStrategies)
}

func TestFirstSuccessOrder(t *testing.T) {
	t.Parallel()
	var order []string
	strategies := []Strategy{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	got, err := FirstSuccess(context.Background(), strategies, func(_ context.Context, s Strategy) (int, error) {
		order = append(order, s.Name)
		if s.Name == "b" {
			return 2, nil
		}
		return 0, errors.New(s.Name + " failed")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestInvokerRecordsMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	inv := NewInvoker([]Strategy{
		{Name: "gemini", Provider: &fakeProvider{err: errors.New("down")}},
		{Name: "qwen", Provider: &fakeProvider{out: "ok"}},
	}, WithInvokerMetrics(m))

	_, err := inv.Invoke(context.Background(), provider.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("gemini", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("qwen", "ok")))

	// a second Metrics on the same registry shares the collectors
	again := NewMetrics(reg)
	assert.Equal(t, 1.0, testutil.ToFloat64(again.invocations.WithLabelValues("qwen", "ok")))
}
