package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Upstream payloads arrive as decoded JSON (map[string]any). These helpers
// read a field and fall back to a zero value on any type mismatch.

func extractString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func extractInt(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		return parseInt(v)
	}
	return 0
}

func extractMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if mv, ok := v.(map[string]any); ok {
			return mv
		}
	}
	return map[string]any{}
}

func extractArray(m map[string]any, key string) []any {
	if v, ok := m[key]; ok {
		if av, ok := v.([]any); ok {
			return av
		}
	}
	return []any{}
}

// firstString returns the first non-empty string field among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := extractString(m, k); s != "" {
			return s
		}
	}
	return ""
}

func parseInt(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		f, _ := val.Float64()
		return int(f)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(val))
		return i
	default:
		return 0
	}
}
