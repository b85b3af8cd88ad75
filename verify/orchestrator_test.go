package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOrchestrator wires the orchestrator to sh so the *.py files in
// scriptDir are plain shell scripts standing in for the real analyzers.
func newTestOrchestrator(t *testing.T) (*Orchestrator, string, string) {
	t.Helper()
	scriptDir := t.TempDir()
	tempDir := t.TempDir()
	o := NewOrchestrator(Config{
		Python:      "sh",
		ScriptDir:   scriptDir,
		TempDir:     tempDir,
		Timeout:     10 * time.Second,
		MongoURI:    "mongodb://localhost:27017",
		MongoDBName: "civiclens",
	})
	return o, scriptDir, tempDir
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
}

func assertNoLeftoverTempFiles(t *testing.T, tempDir string) {
	t.Helper()
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp payload files must be removed")
}

func TestVerifyIdentitySuccess(t *testing.T) {
	o, scriptDir, tempDir := newTestOrchestrator(t)
	writeScript(t, scriptDir, "verify_voter.py", `
echo "loading OCR model..."
test -f "$1" || { echo '{"error": "front image missing"}'; exit 0; }
echo "{\"match\": true, \"reason\": \"ok\", \"extracted_text\": \"$3\"}"
`)

	res, err := o.VerifyIdentity(context.Background(), []byte("front-bytes"), nil, "WB1234567")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, "Voter ID verified successfully.", res.Reason)
	assert.Equal(t, "WB1234567", res.ExtractedNumber)
	assertNoLeftoverTempFiles(t, tempDir)
}

func TestVerifyIdentityMismatch(t *testing.T) {
	o, scriptDir, tempDir := newTestOrchestrator(t)
	writeScript(t, scriptDir, "verify_voter.py", `
echo '{"match": false, "reason": "ID number not found on card", "extracted_text": ["WB", "9999"]}'
`)

	res, err := o.VerifyIdentity(context.Background(), []byte("front"), []byte("back"), "WB1234567")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, "Verification Failed: ID number not found on card", res.Reason)
	assert.Equal(t, "WB, 9999", res.ExtractedNumber)
	assertNoLeftoverTempFiles(t, tempDir)
}

func TestVerifyIdentityBackImageOptional(t *testing.T) {
	o, scriptDir, _ := newTestOrchestrator(t)
	// surface the back-image argument so the test can see what was passed
	writeScript(t, scriptDir, "verify_voter.py", `
echo "{\"match\": false, \"reason\": \"$2\"}"
`)

	res, err := o.VerifyIdentity(context.Background(), []byte("front"), nil, "WB1234567")
	require.NoError(t, err)
	assert.Equal(t, "Verification Failed: NONE", res.Reason)
}

func TestVerifyIdentityBusinessError(t *testing.T) {
	o, scriptDir, tempDir := newTestOrchestrator(t)
	writeScript(t, scriptDir, "verify_voter.py", `
echo '{"error": "Image too blurry to read"}'
`)

	_, err := o.VerifyIdentity(context.Background(), []byte("front"), nil, "WB1234567")
	var bizErr *BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, "Image too blurry to read", bizErr.Message)
	assertNoLeftoverTempFiles(t, tempDir)
}

func TestVerifyIdentityTimeoutCleansUp(t *testing.T) {
	o, scriptDir, tempDir := newTestOrchestrator(t)
	o.runner.Timeout = 100 * time.Millisecond
	writeScript(t, scriptDir, "verify_voter.py", `
sleep 5
`)

	_, err := o.VerifyIdentity(context.Background(), []byte("front"), nil, "WB1234567")
	assert.ErrorIs(t, err, ErrTimeout)
	assertNoLeftoverTempFiles(t, tempDir)
}

func TestVerifyIdentityProcessFailure(t *testing.T) {
	o, scriptDir, tempDir := newTestOrchestrator(t)
	writeScript(t, scriptDir, "verify_voter.py", `
echo "Traceback (most recent call last):" >&2
exit 1
`)

	_, err := o.VerifyIdentity(context.Background(), []byte("front"), nil, "WB1234567")
	var procErr *ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, 1, procErr.ExitCode)
	assert.Contains(t, procErr.Stderr, "Traceback")
	assertNoLeftoverTempFiles(t, tempDir)
}

func TestVerifyIdentityUnparseableOutput(t *testing.T) {
	o, scriptDir, tempDir := newTestOrchestrator(t)
	writeScript(t, scriptDir, "verify_voter.py", `
echo "model warmed up"
echo "done"
`)

	_, err := o.VerifyIdentity(context.Background(), []byte("front"), nil, "WB1234567")
	assert.ErrorIs(t, err, ErrUnparseable)
	assertNoLeftoverTempFiles(t, tempDir)
}

func TestDetectDuplicatesSortsByScore(t *testing.T) {
	o, scriptDir, _ := newTestOrchestrator(t)
	writeScript(t, scriptDir, "detect_duplicates.py", `
echo "comparing embeddings..."
echo '{"matches": [{"id": "ISSUE-A", "title": "low", "score": 41.5}, {"id": "ISSUE-B", "title": "high", "score": 92.0, "text_score": 88.0, "image_score": 96.0}]}'
`)

	matches, err := o.DetectDuplicates(context.Background(), "ISSUE-1001")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "ISSUE-B", matches[0].ID)
	assert.Equal(t, 92.0, matches[0].Score)
	assert.Equal(t, "ISSUE-A", matches[1].ID)
}

func TestDetectDuplicatesEmptyResult(t *testing.T) {
	o, scriptDir, _ := newTestOrchestrator(t)
	writeScript(t, scriptDir, "detect_duplicates.py", `
echo '{"matches": []}'
`)

	matches, err := o.DetectDuplicates(context.Background(), "ISSUE-1001")
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestDetectDuplicatesForwardsStoreCoordinates(t *testing.T) {
	o, scriptDir, _ := newTestOrchestrator(t)
	writeScript(t, scriptDir, "detect_duplicates.py", `
if [ "$2" = "mongodb://localhost:27017" ] && [ "$3" = "civiclens" ]; then
  echo '{"matches": []}'
else
  echo '{"error": "wrong arguments"}'
fi
`)

	_, err := o.DetectDuplicates(context.Background(), "ISSUE-1001")
	assert.NoError(t, err)
}

func TestDetectTrafficViolation(t *testing.T) {
	o, scriptDir, tempDir := newTestOrchestrator(t)
	writeScript(t, scriptDir, "detect_traffic_violation.py", `
echo "running detector"
echo '{"violation_detected": true, "violations": [{"type": "No Helmet", "confidence": 0.91, "bbox": [10, 20, 110, 220]}], "license_plate": "WB02AB1234"}'
`)

	res, err := o.DetectTrafficViolation(context.Background(), []byte("image-bytes"))
	require.NoError(t, err)
	assert.True(t, res.ViolationDetected)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "No Helmet", res.Violations[0].Type)
	assert.Equal(t, "WB02AB1234", res.LicensePlate)
	assertNoLeftoverTempFiles(t, tempDir)
}

func TestDetectTrafficViolationNoFindings(t *testing.T) {
	o, scriptDir, _ := newTestOrchestrator(t)
	writeScript(t, scriptDir, "detect_traffic_violation.py", `
echo '{"violation_detected": false, "violations": null, "license_plate": ""}'
`)

	res, err := o.DetectTrafficViolation(context.Background(), []byte("image"))
	require.NoError(t, err)
	assert.False(t, res.ViolationDetected)
	assert.NotNil(t, res.Violations)
	assert.Empty(t, res.Violations)
}
