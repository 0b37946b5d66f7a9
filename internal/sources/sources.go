// Package sources maps external retrieval providers into materials.Document.
package sources

import (
	"context"
	"errors"
	"strconv"

	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

// ErrNotConfigured is returned by a source whose credentials are missing.
var ErrNotConfigured = errors.New("source not configured")

// Query is one search request against a source. Limit <= 0 leaves the
// page size to the source.
type Query struct {
	Text  string
	Limit int
}

// Source is a retrieval backend. Search returns documents already mapped
// into the uniform shape, tagged with the source's SourceType.
type Source interface {
	Name() string
	SourceType() materials.SourceType
	Search(ctx context.Context, q Query) ([]materials.Document, error)
}

// SourceError records a failed search against one source.
type SourceError struct {
	Source string
	Query  string
	Err    error
}

func (e *SourceError) Error() string {
	return "source " + e.Source + " query " + strconv.Quote(e.Query) + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }
