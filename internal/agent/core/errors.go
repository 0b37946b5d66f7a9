package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidationFailed is returned when a schema's custom predicate rejects an object.
var ErrValidationFailed = errors.New("custom validation failed")

// ErrPayloadNotObject is returned when an envelope payload resolves to
// something other than a JSON object.
var ErrPayloadNotObject = errors.New("payload is not a JSON object")

// ErrNoStrategies is returned by an Invoker built without any provider.
var ErrNoStrategies = errors.New("no provider strategies configured")

// MissingFieldError names the first required key absent from a recovered object.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// StrategyError is one provider's failure inside an InvokeError.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// InvokeError is returned when every provider strategy failed. Its message
// joins every failure so a single log line carries the full diagnostic.
type InvokeError struct {
	Attempts []*StrategyError
}

func (e *InvokeError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

func (e *InvokeError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}

// RepairError is returned when the repair call failed or produced text that
// still does not parse.
type RepairError struct {
	Err error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("json repair failed: %v", e.Err)
}

func (e *RepairError) Unwrap() error { return e.Err }

// ParseError is the single failure type of the envelope parser.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("envelope JSON parse failed: %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AgentError attributes any failure of Runtime.Run to the agent that ran it.
type AgentError struct {
	Agent string
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("Agent %s failed: %v", e.Agent, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }
