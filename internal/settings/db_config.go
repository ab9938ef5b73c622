package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot holds the in-memory copy of the settings table.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// current stores the latest snapshot atomically.
var current atomic.Value // stores snapshot

func init() {
	current.Store(snapshot{values: map[string]json.RawMessage{}})
}

// Store replaces the in-memory snapshot of settings.
func Store(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next[key] = cloneRaw(v)
	}
	current.Store(snapshot{updatedAt: updatedAt.UTC(), values: next})
}

// UpdatedAt returns the newest update timestamp seen in the snapshot.
func UpdatedAt() time.Time {
	return load().updatedAt
}

// Value returns a copy of the raw value stored for key.
func Value(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := load().values[key]
	if !ok {
		return nil, false
	}
	return cloneRaw(val), true
}

// IntValue returns the integer stored for key, or fallback when the key is
// missing, unparsable or negative.
func IntValue(key string, fallback int) int {
	raw, ok := Value(key)
	if !ok {
		return fallback
	}
	n, ok := parseInt(raw)
	if !ok || n < 0 {
		return fallback
	}
	return n
}

func load() snapshot {
	s, ok := current.Load().(snapshot)
	if !ok || s.values == nil {
		return snapshot{updatedAt: s.updatedAt, values: map[string]json.RawMessage{}}
	}
	return s
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	copied := make([]byte, len(v))
	copy(copied, v)
	return copied
}
