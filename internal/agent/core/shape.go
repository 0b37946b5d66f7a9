package core

import "sort"

// sameShape reports whether two decoded JSON values have the same outline:
// the same JSON kind, the same sorted key set for objects and, for two
// non-empty arrays, the same shape of their first elements. Scalars of the
// same kind always match.
func sameShape(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		ak, bk := sortedKeys(av), sortedKeys(bv)
		for i := range ak {
			if ak[i] != bk[i] {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok {
			return false
		}
		if len(av) > 0 && len(bv) > 0 {
			return sameShape(av[0], bv[0])
		}
		return true
	case string:
		_, ok := b.(string)
		return ok
	case float64:
		_, ok := b.(float64)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	case nil:
		return b == nil
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
