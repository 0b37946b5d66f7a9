package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

const defaultLibraryHits = 10

// libraryEntry is the indexed view of a document.
type libraryEntry struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Authors []string `json:"authors"`
}

// Library is an in-memory full-text index over the user's own materials.
type Library struct {
	mu    sync.RWMutex
	index bleve.Index
	docs  map[string]materials.Document
}

func NewLibrary() (*Library, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("user library index: %w", err)
	}
	return &Library{index: index, docs: make(map[string]materials.Document)}, nil
}

func (l *Library) Name() string                     { return "user_library" }
func (l *Library) SourceType() materials.SourceType { return materials.UserLibrary }

// Add indexes docs, assigning ids to those without one, and returns the ids
// in input order. Re-adding an id replaces the earlier document.
func (l *Library) Add(docs ...materials.Document) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(docs))
	batch := l.index.NewBatch()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = libraryID(d.URL)
		}
		if d.SourceType == "" {
			d.SourceType = materials.UserLibrary
		}
		if err := batch.Index(d.ID, libraryEntry{Title: d.Title, Content: d.Content, Authors: d.Authors}); err != nil {
			return nil, fmt.Errorf("index %s: %w", d.ID, err)
		}
		l.docs[d.ID] = d
		ids = append(ids, d.ID)
	}
	if err := l.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("user library batch: %w", err)
	}
	return ids, nil
}

// libraryID derives a stable id from the URL so that re-adding a page
// replaces it. Documents without a usable URL get a random id.
func libraryID(rawURL string) string {
	if rawURL != "" {
		if id, err := helpers.URLFingerprint(rawURL); err == nil {
			return id
		}
	}
	return uuid.NewString()
}

// Len returns the number of indexed documents.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}

// Search returns documents matching q.Text, best match first.
func (l *Library) Search(ctx context.Context, q Query) ([]materials.Document, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("user_library: empty query")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLibraryHits
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(text), limit, 0, false)
	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("user_library: %w", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]materials.Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if d, ok := l.docs[hit.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (l *Library) Close() error {
	return l.index.Close()
}
