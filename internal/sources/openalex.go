package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

const (
	defaultOpenAlexURL = "https://api.openalex.org"
	openAlexPerPage    = 10
	openAlexMaxPerPage = 200
)

// OpenAlex queries the OpenAlex works index, most cited first.
type OpenAlex struct {
	baseURL   string
	mailto    string
	sinceYear int
	now       func() time.Time
	http      *helpers.HTTPClient
}

func NewOpenAlex(cfg config.SearchConfig, client *helpers.HTTPClient) *OpenAlex {
	base := strings.TrimRight(cfg.OpenAlexURL, "/")
	if base == "" {
		base = defaultOpenAlexURL
	}
	if client == nil {
		client = helpers.NewHTTPClient(cfg.Timeout, 1, 0)
	}
	return &OpenAlex{baseURL: base, mailto: cfg.OpenAlexMailto, sinceYear: cfg.ScholarSinceYear, now: time.Now, http: client}
}

func (o *OpenAlex) Name() string                     { return "openalex" }
func (o *OpenAlex) SourceType() materials.SourceType { return materials.Academic }

func (o *OpenAlex) Search(ctx context.Context, q Query) ([]materials.Document, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("openalex: empty query")
	}
	perPage := q.Limit
	if perPage <= 0 {
		perPage = openAlexPerPage
	}
	if perPage > openAlexMaxPerPage {
		perPage = openAlexMaxPerPage
	}

	params := url.Values{
		"search":   {text},
		"per_page": {strconv.Itoa(perPage)},
		"sort":     {"cited_by_count:desc"},
	}
	if o.sinceYear > 0 {
		params.Set("filter", fmt.Sprintf("publication_year:%d-%d", o.sinceYear, o.now().Year()))
	}
	if o.mailto != "" {
		params.Set("mailto", o.mailto)
	}

	var resp openAlexResponse
	if err := o.http.DoJSON(ctx, http.MethodGet, o.baseURL+"/works?"+params.Encode(), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("openalex: %w", err)
	}

	docs := make([]materials.Document, 0, len(resp.Results))
	for _, w := range resp.Results {
		d := materials.Document{
			ID:            w.ID,
			Title:         w.Title,
			URL:           workURL(w),
			Content:       reconstructAbstract(w.AbstractInvertedIndex),
			SourceType:    materials.Academic,
			Year:          w.PublicationYear,
			CitationCount: w.CitedByCount,
			PublishedAt:   w.PublicationDate,
			Source:        "openalex",
		}
		for _, a := range w.Authorships {
			if a.Author.DisplayName != "" {
				d.Authors = append(d.Authors, a.Author.DisplayName)
			}
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func workURL(w openAlexWork) string {
	switch {
	case strings.HasPrefix(w.DOI, "http"):
		return w.DOI
	case w.DOI != "":
		return "https://doi.org/" + w.DOI
	default:
		return w.ID
	}
}

// reconstructAbstract turns OpenAlex's word -> positions index back into
// running text.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range index {
		for _, p := range positions {
			pairs = append(pairs, posWord{pos: p, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	DOI                   string           `json:"doi"`
	PublicationDate       string           `json:"publication_date"`
	PublicationYear       int              `json:"publication_year"`
	CitedByCount          int              `json:"cited_by_count"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	Authorships           []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
}
