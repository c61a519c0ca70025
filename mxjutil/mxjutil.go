// Package mxjutil holds the mxj polyvariant-normalisation helpers shared
// by every collaborator loader (nptg, naptan, noc, bods) that decodes a
// generic XML document the same way txcloader does, but without
// TransXChange's richer indirection structure to justify its own copy.
package mxjutil

import (
	"strconv"
	"strings"
)

// GetMap fetches a child key as a map, handling mxj's habit of returning
// a plain map for one occurrence of an element.
func GetMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	child, ok := v.(map[string]interface{})
	return child, ok
}

// AsList normalises a field's decoded value into a slice regardless of
// whether mxj produced a single map (one occurrence), a slice (multiple
// occurrences) or nil (absent).
func AsList(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return val
	default:
		return []interface{}{val}
	}
}

// AsString extracts the textual value of a decoded node, unwrapping the
// {"#text": "..."} shape mxj produces for elements that carry both
// attributes and text content, and trimming surrounding whitespace.
func AsString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case map[string]interface{}:
		if text, ok := val["#text"]; ok {
			return AsString(text)
		}
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// AttrString reads an mxj attribute, which mxj keys with a leading "-".
func AttrString(m map[string]interface{}, name string) string {
	if v, ok := m["-"+name]; ok {
		return AsString(v)
	}
	return ""
}

// AsFloat parses a decoded node's textual value as a float64, returning
// 0 and false if it is absent or non-numeric.
func AsFloat(v interface{}) (float64, bool) {
	s := AsString(v)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
