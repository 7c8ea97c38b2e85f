// Package structured recovers structured output from generation-service
// replies. Services wrap JSON in code fences or surrounding prose; this
// parser tolerates both and has exactly one failure mode: unparsable
// input yields a nil result.
package structured

import (
	"encoding/json"
	"strings"
)

// Strings extracts a JSON array of strings from raw. Non-string array
// elements are skipped; blank elements are skipped; anything that does
// not contain a JSON array at all yields nil.
func Strings(raw string) []string {
	payload := extractArray(raw)
	if payload == "" {
		return nil
	}

	var values []string
	if err := json.Unmarshal([]byte(payload), &values); err == nil {
		return compact(values)
	}

	// Mixed-type array: keep the string members.
	var loose []any
	if err := json.Unmarshal([]byte(payload), &loose); err != nil {
		return nil
	}
	values = values[:0]
	for _, v := range loose {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return compact(values)
}

// extractArray slices the outermost [...] span, which drops code fences
// and any prose the service wrapped around the array.
func extractArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
