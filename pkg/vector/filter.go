package vector

import (
	"sort"
)

// Condition is a single field equality test.
type Condition struct {
	Field string
	Value any
}

// Filter is the compiled form of a metadata filter: a conjunction of
// equality conditions. Engines translate it into their native filter
// expression; all conditions must hold for a document to match.
//
// Equality and AND are the whole language here. OR, ranges and negation
// are engine capabilities this layer does not compile to.
type Filter struct {
	Conditions []Condition
}

// CompileFilter translates a field→value constraint mapping into a
// Filter. A nil or empty mapping compiles to nil, which matches
// everything. Conditions are ordered by field name so compilation is
// deterministic.
func CompileFilter(filters map[string]any) *Filter {
	if len(filters) == 0 {
		return nil
	}

	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conditions := make([]Condition, 0, len(fields))
	for _, field := range fields {
		conditions = append(conditions, Condition{Field: field, Value: filters[field]})
	}

	return &Filter{Conditions: conditions}
}

// Match evaluates the filter against an engine document's metadata. A
// nil filter matches every document.
func (f *Filter) Match(doc map[string]any) bool {
	if f == nil {
		return true
	}

	meta, _ := doc[FieldMetadata].(map[string]any)
	for _, cond := range f.Conditions {
		value, ok := meta[cond.Field]
		if !ok || !looseEqual(value, cond.Value) {
			return false
		}
	}
	return true
}

// looseEqual compares scalar values across the numeric type boundaries a
// JSON round-trip introduces (int vs float64 and friends).
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	return aok && bok && af == bf
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
