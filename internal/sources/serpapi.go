package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

const (
	engineScholar = "google_scholar"
	engineNews    = "google_news"
	engineWeb     = "google"

	defaultSerpAPIURL = "https://serpapi.com/search.json"
	scholarPerQuery   = 5
)

// SerpAPI searches one SerpAPI engine. Use NewScholar, NewNews or NewWeb.
type SerpAPI struct {
	engine    string
	kind      materials.SourceType
	apiKey    string
	endpoint  string
	hl, gl    string
	sinceYear int
	perQuery  int
	http      *helpers.HTTPClient
}

func newSerpAPI(engine string, kind materials.SourceType, cfg config.SearchConfig, client *helpers.HTTPClient) *SerpAPI {
	endpoint := cfg.SerpAPIURL
	if endpoint == "" {
		endpoint = defaultSerpAPIURL
	}
	if client == nil {
		client = helpers.NewHTTPClient(cfg.Timeout, 1, 0)
	}
	return &SerpAPI{
		engine:   engine,
		kind:     kind,
		apiKey:   cfg.SerpAPIKey,
		endpoint: endpoint,
		hl:       cfg.HL,
		gl:       cfg.GL,
		http:     client,
	}
}

// NewScholar searches Google Scholar for academic documents published in or
// after cfg.ScholarSinceYear. Each query keeps its first five results.
func NewScholar(cfg config.SearchConfig, client *helpers.HTTPClient) *SerpAPI {
	s := newSerpAPI(engineScholar, materials.Academic, cfg, client)
	s.sinceYear = cfg.ScholarSinceYear
	s.perQuery = scholarPerQuery
	return s
}

func NewNews(cfg config.SearchConfig, client *helpers.HTTPClient) *SerpAPI {
	return newSerpAPI(engineNews, materials.News, cfg, client)
}

func NewWeb(cfg config.SearchConfig, client *helpers.HTTPClient) *SerpAPI {
	return newSerpAPI(engineWeb, materials.Web, cfg, client)
}

func (s *SerpAPI) Name() string                     { return "serpapi:" + s.engine }
func (s *SerpAPI) SourceType() materials.SourceType { return s.kind }

func (s *SerpAPI) Search(ctx context.Context, q Query) ([]materials.Document, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", s.Name(), ErrNotConfigured)
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("%s: empty query", s.Name())
	}

	params := url.Values{
		"engine":  {s.engine},
		"q":       {text},
		"api_key": {s.apiKey},
	}
	if s.hl != "" {
		params.Set("hl", s.hl)
	}
	switch s.engine {
	case engineScholar:
		params.Set("num", "10")
		if s.sinceYear > 0 {
			params.Set("as_ylo", strconv.Itoa(s.sinceYear))
		}
	case engineWeb:
		params.Set("num", "10")
		fallthrough
	case engineNews:
		if s.gl != "" {
			params.Set("gl", s.gl)
		}
	}

	var resp serpResponse
	if err := s.http.DoJSON(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s: %s", s.Name(), resp.Error)
	}

	var docs []materials.Document
	switch s.engine {
	case engineScholar:
		docs = mapScholar(resp.OrganicResults)
	case engineNews:
		docs = mapNews(resp.NewsResults)
	default:
		docs = mapWeb(resp.OrganicResults)
	}

	limit := q.Limit
	if s.perQuery > 0 && (limit <= 0 || limit > s.perQuery) {
		limit = s.perQuery
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

var yearPattern = regexp.MustCompile(`\d{4}`)

func mapScholar(items []serpOrganic) []materials.Document {
	out := make([]materials.Document, 0, len(items))
	for _, it := range items {
		summary := it.PublicationInfo.Summary
		year := 0
		if m := yearPattern.FindString(summary); m != "" {
			year, _ = strconv.Atoi(m)
		}
		out = append(out, materials.Document{
			Title:         it.Title,
			URL:           it.Link,
			Content:       it.Snippet,
			SourceType:    materials.Academic,
			Authors:       scholarAuthors(summary),
			Year:          year,
			CitationCount: it.InlineLinks.CitedBy.Total,
			Source:        engineScholar,
		})
	}
	return out
}

// scholarAuthors reads the author list from a Scholar summary such as
// "J Smith, K Lee - Nature, 2021 - nature.com".
func scholarAuthors(summary string) []string {
	head, _, _ := strings.Cut(summary, " - ")
	var authors []string
	for _, a := range strings.Split(head, ",") {
		a = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(a), "…"))
		if a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

func mapNews(items []serpNews) []materials.Document {
	out := make([]materials.Document, 0, len(items))
	for _, it := range items {
		out = append(out, materials.Document{
			Title:       it.Title,
			URL:         it.Link,
			Content:     it.Snippet,
			SourceType:  materials.News,
			PublishedAt: normalizeDate(it.Date),
			Source:      orHost(it.Source.Name, it.Link),
		})
	}
	return out
}

func mapWeb(items []serpOrganic) []materials.Document {
	out := make([]materials.Document, 0, len(items))
	for _, it := range items {
		out = append(out, materials.Document{
			Title:      it.Title,
			URL:        it.Link,
			Content:    it.Snippet,
			SourceType: materials.Web,
			Source:     orHost(it.DisplayedLink, it.Link),
		})
	}
	return out
}

// orHost returns name, or the host of link when name is blank.
func orHost(name, link string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return helpers.URLHost(link)
}

var newsDateLayouts = []string{
	time.RFC3339,
	"01/02/2006, 03:04 PM, -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
}

// normalizeDate returns an RFC 3339 timestamp, or "" when raw is not a
// recognised absolute date.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range newsDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

type serpResponse struct {
	Error          string        `json:"error"`
	OrganicResults []serpOrganic `json:"organic_results"`
	NewsResults    []serpNews    `json:"news_results"`
}

type serpOrganic struct {
	Title           string `json:"title"`
	Link            string `json:"link"`
	Snippet         string `json:"snippet"`
	DisplayedLink   string `json:"displayed_link"`
	PublicationInfo struct {
		Summary string `json:"summary"`
	} `json:"publication_info"`
	InlineLinks struct {
		CitedBy struct {
			Total int `json:"total"`
		} `json:"cited_by"`
	} `json:"inline_links"`
}

type serpNews struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Source  struct {
		Name string `json:"name"`
	} `json:"source"`
}
