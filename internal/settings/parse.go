package settings

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// parseInt accepts 5, 5.0, "5" and {"value": 5}.
func parseInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil {
			return parsed, true
		}
		return 0, false
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Value) > 0 {
		return parseInt(wrapper.Value)
	}
	return 0, false
}
