package core

// RunConfig describes one structured-output agent call.
type RunConfig struct {
	AgentName   string   `json:"agent"`
	Prompt      string   `json:"prompt"`
	Schema      *Schema  `json:"-"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// RunResult is the validated object of a successful agent call.
type RunResult struct {
	Agent     string         `json:"agent"`
	Data      map[string]any `json:"data"`
	RawOutput string         `json:"raw_output,omitempty"`
}

// RawConfig describes a one-off generation call whose output may or may not
// follow the envelope protocol. ParseEnvelope defaults to true when nil.
type RawConfig struct {
	Prompt        string   `json:"prompt"`
	Model         string   `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	ParseEnvelope *bool    `json:"parse_envelope,omitempty"`
}

// RawResult carries every form of a raw call's output so the caller decides
// how strict to be.
type RawResult struct {
	RawOutput  string         `json:"raw_output"`
	Normalized string         `json:"normalized"`
	Parsed     map[string]any `json:"parsed,omitempty"`
	ParseError string         `json:"parse_error,omitempty"`
}
