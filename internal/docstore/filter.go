package docstore

import (
	"encoding/json"
	"sort"
)

// Query evaluation helpers shared by the store implementations. All richer
// filtering than one equality predicate happens client-side after fetch, so
// both backends match and order snapshots the same way.

// FieldValue extracts a top-level field from a JSON document.
func FieldValue(data json.RawMessage, field string) (any, bool) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}

// Matches reports whether the snapshot satisfies the query's equality
// predicate. Numbers compare as float64 because that is how JSON decodes.
func Matches(s Snapshot, q Query) bool {
	if q.Field == "" {
		return true
	}
	v, ok := FieldValue(s.Data, q.Field)
	if !ok {
		return false
	}
	return looseEqual(v, q.Equals)
}

func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
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
	}
	return 0, false
}

// Apply filters, orders, and caps snapshots per the query. Ordering falls
// back to document id so results are deterministic for equal field values.
func Apply(snaps []Snapshot, q Query) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if Matches(s, q) {
			out = append(out, s)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Desc {
				return fieldLess(out[j], out[i], q.OrderBy)
			}
			return fieldLess(out[i], out[j], q.OrderBy)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func fieldLess(a, b Snapshot, field string) bool {
	av, _ := FieldValue(a.Data, field)
	bv, _ := FieldValue(b.Data, field)
	if af, ok := asFloat(av); ok {
		bf, _ := asFloat(bv)
		if af != bf {
			return af < bf
		}
		return a.ID < b.ID
	}
	as, _ := av.(string)
	bs, _ := bv.(string)
	if as != bs {
		// RFC 3339 timestamps order correctly as strings.
		return as < bs
	}
	return a.ID < b.ID
}

// MergeFields applies an Update's field map on top of an existing document.
func MergeFields(data json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range fields {
		m[k] = v
	}
	return json.Marshal(m)
}

// Encode marshals a document for storage.
func Encode(doc any) (json.RawMessage, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
