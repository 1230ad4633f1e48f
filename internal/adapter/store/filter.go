package store

import "ragengine/internal/port"

// Matches reports whether entry metadata satisfies the filter. Every
// filter key must match (logical AND). A filter value may be a single
// accepted value or a slice of accepted values; an entry value that is
// itself a list matches when any accepted value is a member of it.
// Missing keys never match.
func Matches(meta map[string]any, filter port.SearchFilter) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if !matchValue(got, want) {
			return false
		}
	}
	return true
}

func matchValue(got, want any) bool {
	accepted := valueList(want)
	if len(accepted) == 0 {
		return false
	}
	for _, w := range accepted {
		if contains(got, w) {
			return true
		}
	}
	return false
}

// contains reports whether got equals want, or, when got is a list,
// whether want is a member of it.
func contains(got, want any) bool {
	if list := asList(got); list != nil {
		for _, item := range list {
			if scalarEqual(item, want) {
				return true
			}
		}
		return false
	}
	return scalarEqual(got, want)
}

func valueList(v any) []any {
	if list := asList(v); list != nil {
		return list
	}
	return []any{v}
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return nil
}

// scalarEqual compares scalar metadata values. Numbers compare by
// value regardless of Go type, since JSON round-trips turn ints into
// float64.
func scalarEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
