package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultStreamMaxLen = 10000

// Event is the message appended to the progress stream.
type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	RunID      string          `json:"run_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func (e *Event) validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("data payload is required")
	}
	return nil
}

// EventStream appends run events to a Redis stream.
type EventStream struct {
	client *redis.Client
	stream string
	opts   []StreamOption
}

// StreamOption adjusts XADD arguments.
type StreamOption func(*redis.XAddArgs)

// WithMaxLenApprox caps the stream at roughly maxLen entries.
func WithMaxLenApprox(maxLen int64) StreamOption {
	return func(args *redis.XAddArgs) {
		if maxLen > 0 {
			args.MaxLen = maxLen
			args.Approx = true
		}
	}
}

func NewEventStream(client *redis.Client, stream string, opts ...StreamOption) *EventStream {
	return &EventStream{client: client, stream: stream, opts: opts}
}

func (s *EventStream) Publish(ctx context.Context, runID, eventType string, payload any) error {
	_, err := s.Append(ctx, runID, eventType, payload)
	return err
}

// Append publishes payload and returns the stream entry id.
func (s *EventStream) Append(ctx context.Context, runID, eventType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		RunID:      runID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if err := ev.validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"event": raw, "run_id": runID},
	}
	for _, opt := range s.opts {
		opt(args)
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// Events returns the stream entries of runID, oldest first, scanning at
// most the last scan entries.
func (s *EventStream) Events(ctx context.Context, runID string, scan int64) ([]Event, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", scan).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}
	var out []Event
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Values["run_id"] != runID {
			continue
		}
		raw, ok := m.Values["event"].(string)
		if !ok {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", m.ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
