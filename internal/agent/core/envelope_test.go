package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepairer answers from a fixed table and counts calls.
type fakeRepairer struct {
	mu      sync.Mutex
	answers map[string]string
	inputs  []string
}

func (f *fakeRepairer) Repair(_ context.Context, broken string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, broken)
	if out, ok := f.answers[broken]; ok {
		return out, nil
	}
	return "", &RepairError{Err: errors.New("no scripted answer")}
}

func (f *fakeRepairer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func TestParseEnvelope(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		answers map[string]string
		want    map[string]any
		repairs int
	}{
		{
			name: "thought section with string payload",
			raw:  "---THOUGHT---\nok\n---JSON---\n{\"meta\":{},\"payload\":\"{\\\"a\\\":1}\"}",
			want: map[string]any{"a": 1.0},
		},
		{
			name: "braces in thought section",
			raw:  "---THOUGHT---\nI will fill the {topic} slot\n---JSON---\n{\"meta\":{},\"payload\":{\"a\":1}}",
			want: map[string]any{"a": 1.0},
		},
		{
			name: "inline object payload",
			raw:  `{"meta":{"agent":"brief"},"payload":{"topic":"AI","tags":["x"]}}`,
			want: map[string]any{"topic": "AI", "tags": []any{"x"}},
		},
		{
			name: "inline object payload without meta",
			raw:  `{"payload":{"k":true}}`,
			want: map[string]any{"k": true},
		},
		{
			name: "bare object without envelope",
			raw:  "Here you go:\n```json\n{\"topic\":\"AI\",\"count\":2}\n```",
			want: map[string]any{"topic": "AI", "count": 2.0},
		},
		{
			name: "string payload without meta returns outer",
			raw:  `{"payload":"{\"a\":1}"}`,
			want: map[string]any{"payload": `{"a":1}`},
		},
		{
			name: "array payload returns outer",
			raw:  `{"meta":{},"payload":[1,2]}`,
			want: map[string]any{"meta": map[string]any{}, "payload": []any{1.0, 2.0}},
		},
		{
			name: "blank payload is empty",
			raw:  `{"meta":{},"payload":"   "}`,
			want: map[string]any{},
		},
		{
			name:    "full-width punctuation and trailing comma",
			raw:     "{“topic”：“AI”，}",
			answers: map[string]string{`{"topic":"AI",}`: `{"topic":"AI"}`},
			want:    map[string]any{"topic": "AI"},
			repairs: 1,
		},
		{
			name:    "no object span repairs raw text",
			raw:     "topic: AI",
			answers: map[string]string{"topic: AI": `{"topic":"AI"}`},
			want:    map[string]any{"topic": "AI"},
			repairs: 1,
		},
		{
			name:    "broken string payload is repaired",
			raw:     `{"meta":{},"payload":"{\"a\":1,}"}`,
			answers: map[string]string{`{"a":1,}`: `{"a":1}`},
			want:    map[string]any{"a": 1.0},
			repairs: 1,
		},
		{
			name:    "fenced string payload",
			raw:     `{"meta":{},"payload":"` + "```json\\n{\\\"a\\\":[1]}\\n```" + `"}`,
			want:    map[string]any{"a": []any{1.0}},
			repairs: 0,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rep := &fakeRepairer{answers: tt.answers}
			got, err := NewEnvelopeParser(rep, nil).Parse(context.Background(), tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.repairs, rep.calls(), "repair calls")
		})
	}
}

func TestParseEnvelopeFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		answers map[string]string
		is      error
	}{
		{name: "unrepairable", raw: `{"a": }`},
		{name: "nothing to extract", raw: "no json at all"},
		{name: "repair still not an object", raw: "words", answers: map[string]string{"words": `"just a string"`}},
		{name: "payload resolves to array", raw: `{"meta":{},"payload":"[1,2]"}`, is: ErrPayloadNotObject},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewEnvelopeParser(&fakeRepairer{answers: tt.answers}, nil).Parse(context.Background(), tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "envelope JSON parse failed")
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestParseWithoutRepairer(t *testing.T) {
	t.Parallel()
	p := NewEnvelopeParser(nil, nil)
	got, err := p.Parse(context.Background(), `{"meta":{},"payload":{"ok":1}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": 1.0}, got)

	_, err = p.Parse(context.Background(), `{"a":1,}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repair disabled")
}

func TestDecodeInnerShapeArbitration(t *testing.T) {
	t.Parallel()
	// The untouched payload parses, but normalisation turns the curly quotes
	// inside the string into bare quotes and breaks it.
	payload := `{"quote":"he said “hi”"}`
	normalized := `{"quote":"he said "hi""}`

	t.Run("same shape keeps unrepaired value", func(t *testing.T) {
		t.Parallel()
		rep := &fakeRepairer{answers: map[string]string{normalized: `{"quote":"he said \"hi\""}`}}
		got, err := NewEnvelopeParser(rep, nil).decodeInner(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"quote": "he said “hi”"}, got)
		assert.Equal(t, 1, rep.calls())
	})

	t.Run("different shape prefers repaired value", func(t *testing.T) {
		t.Parallel()
		rep := &fakeRepairer{answers: map[string]string{normalized: `{"quote":"he said","extra":"hi"}`}}
		got, err := NewEnvelopeParser(rep, nil).decodeInner(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"quote": "he said", "extra": "hi"}, got)
	})
}

func TestSameShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "same keys", a: map[string]any{"a": 1.0, "b": "x"}, b: map[string]any{"b": 2.0, "a": true}, want: true},
		{name: "different keys", a: map[string]any{"a": 1.0}, b: map[string]any{"b": 1.0}, want: false},
		{name: "extra key", a: map[string]any{"a": 1.0}, b: map[string]any{"a": 1.0, "b": 1.0}, want: false},
		{name: "arrays compare first element", a: []any{map[string]any{"x": 1.0}}, b: []any{map[string]any{"x": 2.0}, 3.0}, want: true},
		{name: "empty array matches", a: []any{}, b: []any{1.0}, want: true},
		{name: "array vs object", a: []any{}, b: map[string]any{}, want: false},
		{name: "scalars of same kind", a: "x", b: "y", want: true},
		{name: "scalars of different kind", a: "x", b: 1.0, want: false},
	}
	for _, tt := range tests {
		if got := sameShape(tt.a, tt.b); got != tt.want {
			t.Fatalf("%s: sameShape() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
