package verify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLastJSONSkipsNoise(t *testing.T) {
	stdout := `Downloading model weights...
[INFO] loading OCR pipeline
{"progress": 50}
WARNING: deprecated API
{"match": true, "reason": "ok", "extracted_text": "ABC1234567"}
`
	raw, err := ExtractLastJSON(stdout, HasAnyKey("match"))
	require.NoError(t, err)

	var payload struct {
		Match bool   `json:"match"`
		Text  string `json:"extracted_text"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.True(t, payload.Match)
	assert.Equal(t, "ABC1234567", payload.Text)
}

func TestExtractLastJSONPrefersLastMatchingLine(t *testing.T) {
	stdout := `{"match": false, "reason": "first pass"}
{"match": true, "reason": "second pass"}`
	raw, err := ExtractLastJSON(stdout, HasAnyKey("match"))
	require.NoError(t, err)

	var payload struct {
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "second pass", payload.Reason)
}

func TestExtractLastJSONIgnoresNonMatchingObjects(t *testing.T) {
	stdout := `{"match": true, "reason": "the answer"}
{"progress": 100}
{"unrelated": 1}`
	raw, err := ExtractLastJSON(stdout, HasAnyKey("match", "error"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"match": true, "reason": "the answer"}`, string(raw))
}

func TestExtractLastJSONUnparseable(t *testing.T) {
	for _, stdout := range []string{
		"",
		"plain text only\nno json here",
		`{"broken": `,
		`{"progress": 10}`,
	} {
		_, err := ExtractLastJSON(stdout, HasAnyKey("match"))
		assert.ErrorIs(t, err, ErrUnparseable, "stdout %q", stdout)
	}
}

func TestHasAnyKey(t *testing.T) {
	probe := HasAnyKey("violation_detected", "error")
	assert.True(t, probe(map[string]json.RawMessage{"violation_detected": nil}))
	assert.True(t, probe(map[string]json.RawMessage{"error": nil, "other": nil}))
	assert.False(t, probe(map[string]json.RawMessage{"matches": nil}))
}
