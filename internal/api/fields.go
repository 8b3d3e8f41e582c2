// internal/api/fields.go
package api

import (
	"encoding/json"
	"strings"
	"time"
)

// FieldDenylist holds substrings of field paths that are never reported.
var FieldDenylist = []string{"accessToken", "token", "buffer", "toJSON"}

// Type tags reported by InferFields.
const (
	FieldString  = "string"
	FieldNumber  = "number"
	FieldBoolean = "boolean"
	FieldDate    = "date"
	FieldArray   = "array"
	FieldObject  = "object"
	FieldNull    = "null"
)

// InferFields walks a sample of documents and returns the type of every field path,
// with nested object fields reported as "parent.child". The first non-null type seen
// for a path wins. Paths starting with "_" or containing a denylisted substring are
// skipped together with everything below them. Documents that are not JSON objects
// are ignored.
func InferFields(docs []json.RawMessage, denylist []string) map[string]string {
	fields := make(map[string]string)
	for _, raw := range docs {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		walkFields(fields, doc, "", denylist)
	}
	return fields
}

func walkFields(fields map[string]string, obj map[string]any, prefix string, denylist []string) {
	for key, value := range obj {
		if strings.HasPrefix(key, "_") {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if denied(path, denylist) {
			continue
		}

		tag := typeTag(value)
		if seen, ok := fields[path]; !ok || seen == FieldNull {
			fields[path] = tag
		}
		if nested, ok := value.(map[string]any); ok {
			walkFields(fields, nested, path, denylist)
		}
	}
}

func typeTag(v any) string {
	switch t := v.(type) {
	case nil:
		return FieldNull
	case bool:
		return FieldBoolean
	case float64:
		return FieldNumber
	case string:
		if _, err := time.Parse(time.RFC3339, t); err == nil {
			return FieldDate
		}
		return FieldString
	case []any:
		return FieldArray
	case map[string]any:
		return FieldObject
	default:
		return FieldString
	}
}

func denied(path string, denylist []string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range denylist {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
