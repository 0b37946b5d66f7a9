package core

// Schema is a shape-presence gate for a recovered object. It is not a type
// system: Required keys must be present and non-null, Optional keys are
// informational only, Defaults fill absent or null keys and Validate is an
// optional structural predicate run last.
type Schema struct {
	Name     string
	Required []string
	Optional []string
	Defaults map[string]any
	Validate func(map[string]any) bool
}

// Apply fills defaults into obj, checks required keys and runs the predicate.
// obj is modified in place and returned. A nil obj is treated as empty.
func (s *Schema) Apply(obj map[string]any) (map[string]any, error) {
	if obj == nil {
		obj = map[string]any{}
	}
	if s == nil {
		return obj, nil
	}
	for key, def := range s.Defaults {
		if v, ok := obj[key]; !ok || v == nil {
			obj[key] = cloneJSON(def)
		}
	}
	for _, key := range s.Required {
		if v, ok := obj[key]; !ok || v == nil {
			return nil, &MissingFieldError{Field: key}
		}
	}
	if s.Validate != nil && !s.Validate(obj) {
		return nil, ErrValidationFailed
	}
	return obj, nil
}

// cloneJSON copies maps and slices so a default value shared by a Schema is
// never aliased by the objects it was applied to.
func cloneJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneJSON(e)
		}
		return out
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}
