package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/cowrite/config"
)

type result struct {
	Query string   `json:"query"`
	Hits  []string `json:"hits"`
}

func TestMemoryRoundTripAndExpiry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "run-1", result{Query: "tides", Hits: []string{"a"}}))
	var got result
	require.NoError(t, m.Get(ctx, "run-1", &got))
	assert.Equal(t, result{Query: "tides", Hits: []string{"a"}}, got)

	now = now.Add(time.Minute)
	assert.ErrorIs(t, m.Get(ctx, "run-1", &got), ErrNotFound)
	assert.ErrorIs(t, m.Get(ctx, "missing", &got), ErrNotFound)
	assert.Error(t, m.Put(ctx, "", result{}))
}

func TestMemoryWithoutTTLKeepsEntries(t *testing.T) {
	t.Parallel()
	m := NewMemory(0)
	require.NoError(t, m.Put(context.Background(), "a", map[string]int{"n": 1}))
	var got map[string]int
	require.NoError(t, m.Get(context.Background(), "a", &got))
	assert.Equal(t, 1, got["n"])
}

func TestOpenWithoutAddressUsesMemory(t *testing.T) {
	t.Parallel()
	sink, pub, closeFn, err := Open(context.Background(), config.RedisConfig{TTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, sink)
	assert.Nil(t, pub)
	assert.NoError(t, closeFn())
}

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return host + ":" + port.Port()
}

func TestRedisSinkAndEventStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	addr := startRedis(t)
	ctx := context.Background()

	sink, pub, closeFn, err := Open(ctx, config.RedisConfig{Addr: addr, TTL: time.Hour, Stream: "cowrite:test:events"})
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, sink.Put(ctx, "run-9", result{Query: "kelp", Hits: []string{"x", "y"}}))
	var got result
	require.NoError(t, sink.Get(ctx, "run-9", &got))
	assert.Equal(t, []string{"x", "y"}, got.Hits)
	assert.ErrorIs(t, sink.Get(ctx, "run-unknown", &got), ErrNotFound)

	require.NotNil(t, pub)
	require.NoError(t, pub.Publish(ctx, "run-9", "plan", map[string]string{"topic": "kelp"}))
	require.NoError(t, pub.Publish(ctx, "run-other", "plan", map[string]string{"topic": "other"}))
	require.NoError(t, pub.Publish(ctx, "run-9", "done", map[string]bool{"ok": true}))

	stream := pub.(*EventStream)
	events, err := stream.Events(ctx, "run-9", 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "plan", events[0].EventType)
	assert.Equal(t, "done", events[1].EventType)
	assert.JSONEq(t, `{"topic":"kelp"}`, string(events[0].Data))

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ttl, err := client.TTL(ctx, keyPrefix+"run-9").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}
