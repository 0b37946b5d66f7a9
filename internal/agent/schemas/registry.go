package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/cowrite/internal/agent/core"
)

//go:embed jsonschema/*.json
var documents embed.FS

// ErrUnknownKind is returned by Narrow for a kind with no registered schema.
var ErrUnknownKind = errors.New("unknown schema kind")

type entry struct {
	schema *core.Schema
	decode func([]byte) (Output, error)
}

var registry = mustBuildRegistry()

func mustBuildRegistry() map[Kind]entry {
	compiler := jsonschema.NewCompiler()
	compile := func(kind Kind) *jsonschema.Schema {
		name := "jsonschema/" + string(kind) + ".json"
		raw, err := documents.ReadFile(name)
		if err != nil {
			panic(fmt.Sprintf("schemas: read %s: %v", name, err))
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			panic(fmt.Sprintf("schemas: add %s: %v", name, err))
		}
		return compiler.MustCompile(name)
	}

	return map[Kind]entry{
		KindSearchPlan: {
			schema: &core.Schema{
				Name:     string(KindSearchPlan),
				Required: []string{"search_summary"},
				Optional: []string{"academic_queries", "news_queries", "web_queries", "user_library_queries"},
				Defaults: map[string]any{
					"search_summary":       map[string]any{"interpreted_topic": "", "key_dimensions": []any{}},
					"academic_queries":     []any{},
					"news_queries":         []any{},
					"web_queries":          []any{},
					"user_library_queries": []any{},
				},
				Validate: conforms(compile(KindSearchPlan)),
			},
			decode: decodeAs[SearchPlan],
		},
		KindBrief: {
			schema: &core.Schema{
				Name:     string(KindBrief),
				Required: []string{"topic", "user_core_thesis", "confirmed_insights", "requirement_meta"},
				Optional: []string{"style", "keywords", "background_context"},
				Validate: conforms(compile(KindBrief)),
			},
			decode: decodeAs[WritingBrief],
		},
		KindResearchPack: {
			schema: &core.Schema{
				Name:     string(KindResearchPack),
				Required: []string{"sources", "insights", "summary"},
				Validate: conforms(compile(KindResearchPack)),
			},
			decode: decodeAs[ResearchPack],
		},
		KindStructure: {
			schema: &core.Schema{
				Name:     string(KindStructure),
				Required: []string{"core_thesis", "argument_blocks", "coverage_check", "logical_pattern", "estimated_word_distribution"},
				Optional: []string{"total_estimated_words"},
				Validate: conforms(compile(KindStructure)),
			},
			decode: decodeAs[ArgumentOutline],
		},
		KindDraft: {
			schema: &core.Schema{
				Name:     string(KindDraft),
				Required: []string{"draft_blocks", "global_coherence_score", "missing_evidence_blocks", "needs_revision", "total_word_count"},
				Optional: []string{"revision_notes", "created_at"},
				Validate: conforms(compile(KindDraft)),
			},
			decode: decodeAs[DraftPayload],
		},
		KindReview: {
			schema: &core.Schema{
				Name: string(KindReview),
				Required: []string{
					"logic_issues", "citation_issues", "style_issues", "grammar_issues",
					"redundancy_score", "suggested_rewrites", "overall_quality", "pass",
				},
				Optional: []string{"review_notes", "created_at"},
				Validate: conforms(compile(KindReview)),
			},
			decode: decodeAs[ReviewPayload],
		},
	}
}

func conforms(s *jsonschema.Schema) func(map[string]any) bool {
	return func(obj map[string]any) bool {
		return s.Validate(obj) == nil
	}
}

func decodeAs[T Output](data []byte) (Output, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// For returns the validator schema of kind.
func For(kind Kind) (*core.Schema, bool) {
	e, ok := registry[kind]
	return e.schema, ok
}

// Kinds lists every registered kind in lexical order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Narrow validates obj against the schema of kind and decodes it into the
// matching Output variant. Validation errors are those of core.Schema.Apply.
func Narrow(kind Kind, obj map[string]any) (Output, error) {
	e, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	validated, err := e.schema.Apply(obj)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("narrow %s: %w", kind, err)
	}
	out, err := e.decode(data)
	if err != nil {
		return nil, fmt.Errorf("narrow %s: %w", kind, err)
	}
	return out, nil
}
