package clients

import (
	"time"
)

// Common helper functions for API clients

// getString extracts a string value from a map
func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getInt64 extracts an int64 value from a map (handles both int and float64)
func getInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

// EpochMillis converts a timestamp to epoch milliseconds, mapping the zero
// time to nil (unknown recency).
func EpochMillis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// Int64Ptr returns a pointer to v. Size fields use nil for unknown, so
// callers decide when zero means "absent" versus "empty file".
func Int64Ptr(v int64) *int64 {
	return &v
}
