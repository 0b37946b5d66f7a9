package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/internal/helpers"
	"github.com/mohammad-safakhou/cowrite/provider"
)

const (
	// MaxRepairInput caps the text sent to the repair call, in runes.
	MaxRepairInput = 50000

	DefaultRepairModel     = "gemini-2.5-flash"
	defaultRepairMaxTokens = 8192
)

const repairInstruction = `You are the JSON repair agent of a writing assistant.

Your only task: turn malformed JSON text into JSON that a strict parser accepts.

You must not:
- rewrite any content
- add or remove fields
- guess missing meaning
- summarise or explain
- add any text besides the JSON

You must:
- keep every original field name and value
- fix syntax only
- output nothing but the corrected JSON
- if the input is prose that contains JSON, extract that JSON and fix it

Typical fixes:
- curly or full-width quotes -> ASCII double quotes
- full-width colons, commas and parentheses -> ASCII
- raw newlines inside strings -> \n
- unescaped quotes inside strings -> \"
- trailing commas -> removed
- missing quotes or brackets -> added
- unquoted property names -> quoted
- single-quoted strings -> double-quoted
- markdown code fences -> removed

The repaired JSON must have exactly the same structure and the same number of fields as the input.`

// JSONRepairer converts malformed JSON text into text that parses.
type JSONRepairer interface {
	Repair(ctx context.Context, broken string) (string, error)
}

// Repairer is a narrowly scoped generation call that fixes JSON syntax
// without changing content. It never synthesises missing data.
type Repairer struct {
	gen     Generator
	model   string
	logger  *zap.Logger
	metrics *Metrics
}

// NewRepairer creates a Repairer that calls gen with model (DefaultRepairModel
// when blank).
func NewRepairer(gen Generator, model string, logger *zap.Logger, metrics *Metrics) *Repairer {
	if model == "" {
		model = DefaultRepairModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repairer{gen: gen, model: model, logger: logger, metrics: metrics}
}

// Repair sends broken (truncated to MaxRepairInput runes) to the generator at
// temperature 0 and returns its reply once it is valid JSON.
func (r *Repairer) Repair(ctx context.Context, broken string) (out string, err error) {
	defer func() { r.metrics.observeRepair(err) }()

	input := truncateRunes(broken, MaxRepairInput)
	if len(input) < len(broken) {
		r.logger.Debug("repair input truncated", zap.Int("original_bytes", len(broken)), zap.Int("sent_bytes", len(input)))
	}

	reply, err := r.gen.Invoke(ctx, provider.Request{
		Prompt:      buildRepairPrompt(input),
		Model:       r.model,
		Temperature: provider.Temperature(0),
		MaxTokens:   defaultRepairMaxTokens,
	})
	if err != nil {
		return "", &RepairError{Err: err}
	}

	cleaned := helpers.StripCodeFence(reply)
	if cleaned == "" {
		return "", &RepairError{Err: errors.New("repair returned empty output")}
	}
	if !json.Valid([]byte(cleaned)) {
		return "", &RepairError{Err: fmt.Errorf("repaired output is still not valid JSON: %s", preview(cleaned, 120))}
	}
	return cleaned, nil
}

func buildRepairPrompt(input string) string {
	return repairInstruction + "\n\nThe following JSON has syntax errors, repair it:\n\n====================\n" +
		input +
		"\n====================\n\nOutput the repaired JSON directly. No explanation. No markdown."
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func preview(s string, limit int) string {
	if t := truncateRunes(s, limit); len(t) < len(s) {
		return t + "..."
	}
	return s
}
