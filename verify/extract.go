package verify

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparseable means no stdout line held the expected structured payload.
var ErrUnparseable = errors.New("no parseable result in process output")

// HasAnyKey builds a probe accepting objects that carry at least one of the
// given discriminating fields.
func HasAnyKey(keys ...string) func(map[string]json.RawMessage) bool {
	return func(obj map[string]json.RawMessage) bool {
		for _, k := range keys {
			if _, ok := obj[k]; ok {
				return true
			}
		}
		return false
	}
}

// ExtractLastJSON scans stdout lines from last to first and returns the first
// (most recent) line that parses as a JSON object and satisfies the probe.
// Progress lines, warnings and library noise on earlier lines are skipped;
// individual parse failures are never errors of their own.
func ExtractLastJSON(stdout string, probe func(map[string]json.RawMessage) bool) (json.RawMessage, error) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		if probe(obj) {
			return json.RawMessage(line), nil
		}
	}
	return nil, ErrUnparseable
}
