// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package docstore

import (
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// serverTimestamp is the type of the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp is a field value replaced with the store's commit time.
// Callers never supply wall-clock time for createdAt/updatedAt fields.
//
//	batch.Set("users", id, docstore.Fields{"createdAt": docstore.ServerTimestamp})
var ServerTimestamp interface{} = serverTimestamp{}

// Fields is the field map of a document.
//
// Values written through a store keep their Go types in MemoryStore but come
// back from BadgerStore after a JSON round-trip (numbers as float64, times as
// RFC3339 strings). The typed accessors below accept both forms.
type Fields map[string]interface{}

// Document is a single record in a collection.
type Document struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Fields     Fields    `json:"fields"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	d.Fields = d.Fields.Clone()
	return d
}

// Clone returns a deep copy of the field map.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Fields:
		return t.Clone()
	case map[string]interface{}:
		return Fields(t).Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Has reports whether the field is present and non-nil.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns the field as a string, or "" if absent or not a string.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Float returns the field as a float64. Integers, json.Number and numeric
// strings are converted; anything else yields 0.
func (f Fields) Float(key string) float64 {
	n, _ := toFloat(f[key])
	return n
}

// Int returns the field as an int64, truncating floats.
func (f Fields) Int(key string) int64 {
	n, _ := toFloat(f[key])
	return int64(n)
}

// Bool returns the field as a bool, or false if absent.
func (f Fields) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return false
	}
}

// Time returns the field as a time.Time, or the zero time if absent.
func (f Fields) Time(key string) time.Time {
	t, _ := toTime(f[key])
	return t
}

// Map returns a nested map field, or nil.
func (f Fields) Map(key string) Fields {
	switch v := f[key].(type) {
	case Fields:
		return v
	case map[string]interface{}:
		return Fields(v)
	default:
		return nil
	}
}

// Strings returns a string slice field. JSON-decoded []interface{} values are
// converted element-wise; non-string elements are skipped.
func (f Fields) Strings(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toFloat(v interface{}) (float64, bool) {
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// resolveServerTimestamps replaces ServerTimestamp sentinels (at any depth)
// with now.
func resolveServerTimestamps(f Fields, now time.Time) Fields {
	for k, v := range f {
		switch t := v.(type) {
		case serverTimestamp:
			f[k] = now
		case Fields:
			f[k] = resolveServerTimestamps(t, now)
		case map[string]interface{}:
			f[k] = resolveServerTimestamps(Fields(t), now)
		}
	}
	return f
}
