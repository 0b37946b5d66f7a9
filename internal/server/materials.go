package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/cowrite/internal/materials"
	"github.com/mohammad-safakhou/cowrite/internal/queue"
	"github.com/mohammad-safakhou/cowrite/internal/sources"
)

type cleanRequest struct {
	Documents  []materials.Document `json:"documents"`
	SourceType materials.SourceType `json:"source_type,omitempty"`
	// Options overrides individual fields of the source type's defaults.
	Options json.RawMessage `json:"options,omitempty"`
}

type cleanResponse struct {
	Documents []materials.RankedDocument `json:"documents"`
	Removed   int                        `json:"removed"`
}

func (s *Server) cleanMaterials(c echo.Context) error {
	var req cleanRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	opts := materials.OptionsFor(req.SourceType)
	if len(req.Options) > 0 && string(req.Options) != "null" {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return badRequest("invalid options: %v", err)
		}
	}
	kept := materials.Clean(req.Documents, opts)
	return c.JSON(http.StatusOK, cleanResponse{Documents: kept, Removed: len(req.Documents) - len(kept)})
}

type rerankRequest struct {
	Documents        []materials.RankedDocument `json:"documents"`
	Query            string                     `json:"query"`
	Keywords         []string                   `json:"keywords"`
	TopN             int                        `json:"top_n"`
	MaxContentLength int                        `json:"max_content_length"`
	KeywordOnly      bool                       `json:"keyword_only"`
}

func (s *Server) rerankMaterials(c echo.Context) error {
	var req rerankRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	ranked := s.deps.Ranker.Rerank(c.Request().Context(), req.Documents, req.Query, req.Keywords, materials.RerankOptions{
		TopN:             req.TopN,
		MaxContentLength: req.MaxContentLength,
		KeywordOnly:      req.KeywordOnly,
	})
	return c.JSON(http.StatusOK, map[string]any{"documents": ranked})
}

type extractRequest struct {
	URL string `json:"url"`
}

func (s *Server) extractPage(c echo.Context) error {
	if s.deps.Extractor == nil {
		return unavailable("page extractor")
	}
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if strings.TrimSpace(req.URL) == "" {
		return badRequest("url is required")
	}
	page, err := queue.Do(c.Request().Context(), s.deps.Queues.Search, func(ctx context.Context) (*sources.Page, error) {
		return s.deps.Extractor.Extract(ctx, req.URL)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

type libraryAddRequest struct {
	Documents []materials.Document `json:"documents"`
}

func (s *Server) addToLibrary(c echo.Context) error {
	if s.deps.Library == nil {
		return unavailable("user library")
	}
	var req libraryAddRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}
	if len(req.Documents) == 0 {
		return badRequest("documents are required")
	}
	ids, err := s.deps.Library.Add(req.Documents...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"ids": ids, "total": s.deps.Library.Len()})
}

func (s *Server) searchLibrary(c echo.Context) error {
	if s.deps.Library == nil {
		return unavailable("user library")
	}
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return badRequest("q is required")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest("invalid limit %q", raw)
		}
		limit = n
	}
	docs, err := s.deps.Library.Search(c.Request().Context(), sources.Query{Text: q, Limit: limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}
