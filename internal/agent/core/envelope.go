package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/internal/helpers"
)

// EnvelopeParser recovers a JSON object from free-form model output. Output
// may be a bare object, an envelope {"meta":{...},"payload":{...}} or an
// envelope whose payload is itself a JSON-encoded string. Decoding happens in
// two stages (outer document, then the optional string payload) and a repair
// call is made whenever a stage fails to parse.
type EnvelopeParser struct {
	repairer JSONRepairer
	logger   *zap.Logger
}

// NewEnvelopeParser creates a parser. A nil repairer disables repair calls so
// parse failures surface immediately.
func NewEnvelopeParser(repairer JSONRepairer, logger *zap.Logger) *EnvelopeParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnvelopeParser{repairer: repairer, logger: logger}
}

// Parse resolves raw into a single JSON object. A blank string payload yields
// an empty, non-nil map.
func (p *EnvelopeParser) Parse(ctx context.Context, raw string) (map[string]any, error) {
	outer, err := p.decodeOuter(ctx, raw)
	if err != nil {
		return nil, &ParseError{Stage: "envelope", Err: err}
	}

	if payload, ok := outer["payload"].(map[string]any); ok {
		return payload, nil
	}
	payload, isString := outer["payload"].(string)
	if outer["meta"] == nil || !isString {
		return outer, nil
	}
	if strings.TrimSpace(payload) == "" {
		return map[string]any{}, nil
	}

	inner, err := p.decodeInner(ctx, payload)
	if err != nil {
		return nil, &ParseError{Stage: "payload", Err: err}
	}
	return inner, nil
}

// decodeOuter locates the first {...} span, normalises it and decodes it,
// repairing once when a step fails.
func (p *EnvelopeParser) decodeOuter(ctx context.Context, raw string) (map[string]any, error) {
	span, err := helpers.ExtractJSONObject(raw)
	if err != nil {
		repaired, rerr := p.repair(ctx, raw)
		if rerr != nil {
			return nil, fmt.Errorf("%w; %w", err, rerr)
		}
		if span, err = helpers.ExtractJSONObject(repaired); err != nil {
			return nil, fmt.Errorf("repaired text: %w", err)
		}
	}

	normalized := helpers.NormalizeLLMOutput(span)
	var outer map[string]any
	err = json.Unmarshal([]byte(normalized), &outer)
	if err == nil {
		return outer, nil
	}

	repaired, rerr := p.repair(ctx, normalized)
	if rerr != nil {
		return nil, fmt.Errorf("%w; %w", err, rerr)
	}
	outer = nil
	if err := json.Unmarshal([]byte(repaired), &outer); err != nil {
		return nil, fmt.Errorf("repaired envelope: %w", err)
	}
	if outer == nil {
		return nil, errors.New("repaired envelope is null")
	}
	return outer, nil
}

// decodeInner decodes a string payload as a second JSON document. When the
// normalised payload needs a repair, the repaired value is authoritative
// unless the untouched payload already decoded to the same shape, in which
// case that unrepaired value is kept since it is content-exact.
func (p *EnvelopeParser) decodeInner(ctx context.Context, payload string) (map[string]any, error) {
	normalized := helpers.NormalizeLLMOutput(payload)
	var content any
	err := json.Unmarshal([]byte(normalized), &content)
	if err == nil {
		return asObject(content)
	}

	repaired, rerr := p.repair(ctx, normalized)
	if rerr != nil {
		return nil, fmt.Errorf("%w; %w", err, rerr)
	}
	var repairedContent any
	if err := json.Unmarshal([]byte(repaired), &repairedContent); err != nil {
		return nil, fmt.Errorf("repaired payload: %w", err)
	}

	var original any
	if json.Unmarshal([]byte(payload), &original) == nil {
		// Matching shapes keep the unrepaired value, not the repaired one.
		if sameShape(original, repairedContent) {
			return asObject(original)
		}
		p.logger.Info("repaired payload differs in shape from unrepaired parse; using repaired",
			zap.Int("payload_bytes", len(payload)))
	}
	return asObject(repairedContent)
}

func (p *EnvelopeParser) repair(ctx context.Context, text string) (string, error) {
	if p.repairer == nil {
		return "", errors.New("repair disabled")
	}
	p.logger.Debug("requesting JSON repair", zap.Int("bytes", len(text)))
	return p.repairer.Repair(ctx, text)
}

func asObject(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w (got %s)", ErrPayloadNotObject, jsonKind(v))
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "object"
	}
}
