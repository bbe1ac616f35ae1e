// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// Operator is a filter comparison operator.
type Operator string

// Supported filter operators.
const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="

	// OpEqualFold matches strings equal under Unicode case folding.
	OpEqualFold Operator = "=~"
)

// Filter restricts a query to documents whose field compares true against Value.
type Filter struct {
	Field string
	Op    Operator
	Value interface{}
}

// Order sorts query results by a field.
type Order struct {
	Field      string
	Descending bool
}

// Query selects documents from a single collection.
// A zero Query returns every document ordered by ID.
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// Where returns a copy of q with an additional filter.
func (q Query) Where(field string, op Operator, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Order returns a copy of q with an additional sort key.
func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Field: field, Descending: descending})
	return q
}

// Take returns a copy of q limited to n results.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Validate rejects unknown operators and negative limits.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpEqualFold:
		default:
			return fmt.Errorf("unsupported operator %q on field %q", f.Op, f.Field)
		}
		if f.Field == "" {
			return fmt.Errorf("filter with empty field name")
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// matches reports whether doc satisfies every filter.
// A document missing the filtered field never matches.
func (q Query) matches(doc Document) bool {
	for _, f := range q.Filters {
		v, ok := doc.Fields[f.Field]
		if !ok || v == nil {
			return false
		}
		if f.Op == OpEqualFold {
			got, isStr := v.(string)
			want, wantStr := f.Value.(string)
			if !isStr || !wantStr || !strings.EqualFold(got, want) {
				return false
			}
			continue
		}
		cmp, comparable := compareValues(v, f.Value)
		if !comparable {
			if f.Op == OpNotEqual {
				continue
			}
			return false
		}
		switch f.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpNotEqual:
			if cmp == 0 {
				return false
			}
		case OpLess:
			if cmp >= 0 {
				return false
			}
		case OpLessEqual:
			if cmp > 0 {
				return false
			}
		case OpGreater:
			if cmp <= 0 {
				return false
			}
		case OpGreaterEqual:
			if cmp < 0 {
				return false
			}
		}
	}
	return true
}

// apply filters, sorts and limits docs in place.
func (q Query) apply(docs []Document) []Document {
	out := docs[:0]
	for _, d := range docs {
		if q.matches(d) {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.OrderBy {
			a, aok := out[i].Fields[o.Field]
			b, bok := out[j].Fields[o.Field]
			// Missing fields sort last regardless of direction.
			if !aok || !bok {
				if aok != bok {
					return aok
				}
				continue
			}
			cmp, ok := compareValues(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if o.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// compareValues orders two field values. Times (including RFC3339 strings) are
// compared chronologically, numbers numerically, strings and bools naturally.
// The second result is false when the values are not of comparable kinds.
func compareValues(a, b interface{}) (int, bool) {
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if fa, ok := toNumber(a); ok {
		if fb, ok := toNumber(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// toNumber is toFloat without the string parsing branch, so that "10" and 10
// are not considered equal in filters.
func toNumber(v interface{}) (float64, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return toFloat(v)
}
