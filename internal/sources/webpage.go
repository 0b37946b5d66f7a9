package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

// ContentStatus grades how much of a page's text was recoverable.
type ContentStatus string

const (
	FullText            ContentStatus = "full_text"
	AbstractOnly        ContentStatus = "abstract_only"
	InsufficientContent ContentStatus = "insufficient_content"
	Unavailable         ContentStatus = "unavailable_fulltext"
)

const (
	defaultPageBytes = 4 << 20
	maxParagraphs    = 8
	targetParagraphs = 6
)

var ErrNotHTML = errors.New("not an html page")

// ErrInvalidURL is returned for anything but an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// Page is the readable content of a fetched URL.
type Page struct {
	URL        string        `json:"url"`
	Title      string        `json:"title"`
	Byline     string        `json:"byline,omitempty"`
	SiteName   string        `json:"site_name,omitempty"`
	Excerpt    string        `json:"excerpt,omitempty"`
	Text       string        `json:"text"`
	Paragraphs []string      `json:"extracted_content"`
	Status     ContentStatus `json:"content_status"`
}

// Document converts p into a web document for cleaning.
func (p *Page) Document() materials.Document {
	d := materials.Document{
		Title:      p.Title,
		URL:        p.URL,
		Content:    p.Text,
		SourceType: materials.Web,
		Source:     p.SiteName,
	}
	if p.Byline != "" {
		d.Authors = []string{p.Byline}
	}
	return d
}

// Extractor fetches pages and pulls their main text out with readability.
type Extractor struct {
	http     *helpers.HTTPClient
	maxBytes int64
}

func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{http: helpers.NewHTTPClient(timeout, 1, 0), maxBytes: defaultPageBytes}
}

func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w %q", ErrInvalidURL, rawURL)
	}

	body, contentType, finalURL, err := e.http.Fetch(ctx, u.String(), map[string]string{"Accept": "text/html,application/xhtml+xml"}, e.maxBytes)
	if err != nil {
		return nil, err
	}
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("%s: %w (%s)", rawURL, ErrNotHTML, contentType)
	}
	if parsed, perr := url.Parse(finalURL); perr == nil {
		u = parsed
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return nil, fmt.Errorf("readability %s: %w", u, err)
	}

	text := strings.TrimSpace(article.TextContent)
	return &Page{
		URL:        u.String(),
		Title:      strings.TrimSpace(article.Title),
		Byline:     strings.TrimSpace(article.Byline),
		SiteName:   strings.TrimSpace(article.SiteName),
		Excerpt:    strings.TrimSpace(article.Excerpt),
		Text:       text,
		Paragraphs: keyParagraphs(text),
		Status:     gradeContent(text),
	}, nil
}

func gradeContent(text string) ContentStatus {
	switch n := utf8.RuneCountInString(text); {
	case n < 100:
		return Unavailable
	case n < 300:
		return InsufficientContent
	case n < 1000:
		return AbstractOnly
	default:
		return FullText
	}
}

var sentenceBreak = regexp.MustCompile(`[。！？\n\r]+`)

// keyParagraphs groups sentences into at most eight paragraphs of roughly
// equal size. Text that yields fewer than three is cut into five chunks.
func keyParagraphs(text string) []string {
	if text == "" {
		return nil
	}
	var sentences []string
	for _, s := range sentenceBreak.Split(text, -1) {
		if s = strings.TrimSpace(s); utf8.RuneCountInString(s) > 20 {
			sentences = append(sentences, s)
		}
	}

	var out []string
	if len(sentences) > 0 {
		size := (len(sentences) + targetParagraphs - 1) / targetParagraphs
		for i := 0; i < len(sentences) && len(out) < maxParagraphs; i += size {
			end := min(i+size, len(sentences))
			if p := strings.Join(sentences[i:end], "。"); utf8.RuneCountInString(p) > 30 {
				out = append(out, p)
			}
		}
	}

	runes := []rune(text)
	if len(out) < 3 && len(runes) > 300 {
		size := (len(runes) + 4) / 5
		for i := 0; i < len(runes) && len(out) < 5; i += size {
			end := min(i+size, len(runes))
			if chunk := strings.TrimSpace(string(runes[i:end])); utf8.RuneCountInString(chunk) > 50 {
				out = append(out, chunk)
			}
		}
	}
	return out
}
