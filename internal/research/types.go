package research

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/mohammad-safakhou/cowrite/internal/agent/schemas"
	"github.com/mohammad-safakhou/cowrite/internal/materials"
)

// ErrMissingRequirements is returned when a request carries no requirements document.
var ErrMissingRequirements = errors.New("requirements_doc is required")

// Stage names one step of a research run as reported to progress listeners.
type Stage string

const (
	StagePlan      Stage = "plan"
	StageSearching Stage = "searching"
	StageTop3      Stage = "top3"
	StageFinal     Stage = "final"
	StageDone      Stage = "done"
	StageError     Stage = "error"
)

// Event is one progress notification. Data depends on the stage: the search
// plan for plan, the highlights for top3 and the Result for final.
type Event struct {
	RunID   string `json:"run_id"`
	Stage   Stage  `json:"stage"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives events in stage order. It is called synchronously
// from the goroutine running the pipeline.
type ProgressFunc func(Event)

// Request starts a research run. RequirementsDoc is either a JSON string or
// any JSON value describing the piece to be written.
type Request struct {
	RequirementsDoc json.RawMessage `json:"requirements_doc"`
}

// requirementsText renders the document the way it is shown to the planner.
func (r Request) requirementsText() (string, error) {
	raw := strings.TrimSpace(string(r.RequirementsDoc))
	if raw == "" || raw == "null" {
		return "", ErrMissingRequirements
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", ErrMissingRequirements
		}
		return s, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", errors.New("requirements_doc is not valid JSON")
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

// Highlight is the short preview sent with the top3 stage.
type Highlight struct {
	Title      string               `json:"title"`
	Source     materials.SourceType `json:"source"`
	Conclusion string               `json:"conclusion"`
	URL        string               `json:"url"`
}

// Failure records a source query that returned an error. Failed queries do
// not fail the run.
type Failure struct {
	Source string `json:"source"`
	Query  string `json:"query"`
	Error  string `json:"error"`
}

// Result is the outcome of one research run.
type Result struct {
	RunID              string                     `json:"run_id"`
	Plan               schemas.SearchPlan         `json:"plan"`
	Ranked             []materials.RankedDocument `json:"ranked"`
	AcademicSources    []materials.RankedDocument `json:"academic_sources"`
	NewsSources        []materials.RankedDocument `json:"news_sources"`
	WebSources         []materials.RankedDocument `json:"web_sources"`
	UserLibrarySources []materials.RankedDocument `json:"user_library_sources"`
	Failures           []Failure                  `json:"failures,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
}

func (r *Result) group() {
	r.AcademicSources = bySourceType(r.Ranked, materials.Academic)
	r.NewsSources = bySourceType(r.Ranked, materials.News)
	r.WebSources = bySourceType(r.Ranked, materials.Web)
	r.UserLibrarySources = bySourceType(r.Ranked, materials.UserLibrary)
}

func bySourceType(docs []materials.RankedDocument, t materials.SourceType) []materials.RankedDocument {
	out := []materials.RankedDocument{}
	for _, d := range docs {
		if d.SourceType == t {
			out = append(out, d)
		}
	}
	return out
}

func highlights(docs []materials.RankedDocument) []Highlight {
	n := min(len(docs), 3)
	out := make([]Highlight, 0, n)
	for _, d := range docs[:n] {
		out = append(out, Highlight{
			Title:      d.Title,
			Source:     d.SourceType,
			Conclusion: conclusion(d.Content),
			URL:        d.URL,
		})
	}
	return out
}

func conclusion(content string) string {
	r := []rune(content)
	if len(r) > 150 {
		r = r[:150]
	}
	return string(r) + "..."
}
