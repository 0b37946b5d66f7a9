package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDefaultsSatisfyRequired(t *testing.T) {
	t.Parallel()
	s := &Schema{Required: []string{"x"}, Defaults: map[string]any{"x": []any{}}}
	got, err := s.Apply(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": []any{}}, got)
}

func TestSchemaMissingRequiredNamesField(t *testing.T) {
	t.Parallel()
	s := &Schema{Required: []string{"topic", "thesis"}}
	_, err := s.Apply(map[string]any{"topic": "AI", "thesis": nil})
	var mf *MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "thesis", mf.Field)
	assert.Equal(t, "missing required field: thesis", err.Error())
}

func TestSchemaDefaultReplacesNull(t *testing.T) {
	t.Parallel()
	s := &Schema{Defaults: map[string]any{"tags": []any{"a"}, "depth": "medium"}}
	got, err := s.Apply(map[string]any{"tags": nil, "depth": "deep"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got["tags"])
	assert.Equal(t, "deep", got["depth"], "present values are never overwritten")
}

func TestSchemaDefaultsAreNotShared(t *testing.T) {
	t.Parallel()
	s := &Schema{Defaults: map[string]any{"items": []any{}, "meta": map[string]any{"n": 1.0}}}
	first, err := s.Apply(nil)
	require.NoError(t, err)
	first["items"] = append(first["items"].([]any), "mutated")
	first["meta"].(map[string]any)["n"] = 2.0

	second, err := s.Apply(nil)
	require.NoError(t, err)
	assert.Empty(t, second["items"])
	assert.Equal(t, 1.0, second["meta"].(map[string]any)["n"])
}

func TestSchemaPredicate(t *testing.T) {
	t.Parallel()
	calledAfterDefaults := false
	s := &Schema{
		Defaults: map[string]any{"blocks": []any{}},
		Validate: func(m map[string]any) bool {
			_, calledAfterDefaults = m["blocks"]
			return len(m["blocks"].([]any)) > 0
		},
	}
	_, err := s.Apply(map[string]any{})
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, "custom validation failed", err.Error())
	assert.True(t, calledAfterDefaults)

	got, err := s.Apply(map[string]any{"blocks": []any{1.0}})
	require.NoError(t, err)
	assert.Len(t, got["blocks"], 1)
}

func TestSchemaOptionalNeverFails(t *testing.T) {
	t.Parallel()
	s := &Schema{Optional: []string{"style", "keywords"}}
	got, err := s.Apply(map[string]any{"topic": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "x"}, got)

	var nilSchema *Schema
	got, err = nilSchema.Apply(nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
}
