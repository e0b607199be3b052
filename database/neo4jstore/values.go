package neo4jstore

import (
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// value returns the record value for key or nil.
func value(record *db.Record, key string) any {
	v, _ := record.Get(key)
	return v
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// asStrings converts a list value to sorted strings, skipping nulls.
func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func asFloat32s(v any) []float32 {
	switch list := v.(type) {
	case []any:
		if len(list) == 0 {
			return nil
		}
		out := make([]float32, 0, len(list))
		for _, item := range list {
			out = append(out, float32(asFloat(item)))
		}
		return out
	case []float64:
		out := make([]float32, 0, len(list))
		for _, f := range list {
			out = append(out, float32(f))
		}
		return out
	default:
		return nil
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

// toList converts an embedding to a Cypher list. Empty embeddings become null.
func toList(vector []float32) any {
	if len(vector) == 0 {
		return nil
	}
	out := make([]float64, len(vector))
	for i, f := range vector {
		out[i] = float64(f)
	}
	return out
}
