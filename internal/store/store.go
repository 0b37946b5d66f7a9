// Package store persists research results and progress events. Redis is the
// production backend; Memory serves tests and single-process deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/cowrite/config"
)

// ErrNotFound is returned by Get for unknown or expired ids.
var ErrNotFound = errors.New("result not found")

// Sink stores finished results as JSON under a run id.
type Sink interface {
	Put(ctx context.Context, id string, v any) error
	Get(ctx context.Context, id string, out any) error
}

// Publisher records progress events for a run.
type Publisher interface {
	Publish(ctx context.Context, runID, eventType string, payload any) error
}

// Open returns the backends selected by cfg: Redis when an address is set,
// otherwise an in-memory sink and no event stream. The returned close func
// is never nil.
func Open(ctx context.Context, cfg config.RedisConfig) (Sink, Publisher, func() error, error) {
	if cfg.Addr == "" {
		return NewMemory(cfg.TTL), nil, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}

	var pub Publisher
	if cfg.Stream != "" {
		pub = NewEventStream(client, cfg.Stream, WithMaxLenApprox(defaultStreamMaxLen))
	}
	return NewRedis(client, cfg.TTL), pub, client.Close, nil
}
