package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/cowrite/config"
)

func newFakeService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/embeddings":
			var req serviceRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			out := serviceResponse{}
			for _, text := range req.Texts {
				out.Embeddings = append(out.Embeddings, []float32{float32(len(text)), 1})
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServiceClient(t *testing.T) {
	t.Parallel()
	srv := newFakeService(t)
	c := NewServiceClient(srv.URL + "/")

	require.NoError(t, c.Health(context.Background()))
	vecs, err := c.Embed(context.Background(), []string{"ab", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {4, 1}}, vecs)

	vecs, err = c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestServiceClientCountMismatch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer srv.Close()

	_, err := NewServiceClient(srv.URL).Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "got 1 vectors for 2 texts")
}

func TestEmbedEachIsolatesFailures(t *testing.T) {
	t.Parallel()
	e := Func(func(_ context.Context, texts []string) ([][]float32, error) {
		if texts[0] == "bad" {
			return nil, errors.New("quota")
		}
		return [][]float32{{float32(len(texts[0]))}}, nil
	})
	vecs, errs := EmbedEach(context.Background(), e, []string{"a", "bad", "ccc"}, 2)
	assert.Equal(t, [][]float32{{1}, nil, {3}}, vecs)
	assert.NoError(t, errs[0])
	assert.EqualError(t, errs[1], "quota")
	assert.NoError(t, errs[2])
}

func TestCosine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 2}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "empty", want: 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("%s: Cosine() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()
	e, err := New(context.Background(), config.EmbeddingConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = New(context.Background(), config.EmbeddingConfig{Type: "service"}, nil)
	assert.ErrorContains(t, err, "embedding.url")

	_, err = New(context.Background(), config.EmbeddingConfig{Type: "word2vec"}, nil)
	assert.ErrorContains(t, err, "unsupported embedding type")

	srv := newFakeService(t)
	e, err = New(context.Background(), config.EmbeddingConfig{Type: "service", URL: srv.URL}, nil)
	require.NoError(t, err)
	vecs, err := e.Embed(context.Background(), []string{"xyz"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}}, vecs)
}

func TestNewOpenAIBackend(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	e, err := New(context.Background(), config.EmbeddingConfig{Type: "openai", URL: srv.URL, APIKey: "k", Model: "text-embedding-3-small"}, nil)
	require.NoError(t, err)
	vecs, err := e.Embed(context.Background(), []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.5}}, vecs)
}
