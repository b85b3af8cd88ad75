package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BusinessError carries an error message embedded in an otherwise well-formed
// result payload: the process ran and answered, and the answer is a failure.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string {
	return "verification reported an error: " + e.Message
}

type Config struct {
	// Python is the interpreter used to run the analysis scripts.
	Python string
	// ScriptDir holds verify_voter.py, detect_duplicates.py and
	// detect_traffic_violation.py.
	ScriptDir string
	// WorkDir is the working directory for script invocations.
	WorkDir string
	// TempDir receives the per-call image payload files.
	TempDir string
	Timeout time.Duration
	// MongoURI/MongoDBName are forwarded to the duplicate-detection script,
	// which reads candidate issues itself.
	MongoURI    string
	MongoDBName string
}

// Orchestrator shells out to the analysis scripts and turns their noisy
// stdout into trustworthy results. It owns the temp files it writes: they are
// removed on every exit path, timeouts included.
type Orchestrator struct {
	cfg    Config
	runner *Runner
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = filepath.Join("ml", "scripts")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Orchestrator{cfg: cfg, runner: &Runner{Timeout: cfg.Timeout}}
}

func (o *Orchestrator) writeTemp(prefix string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), uuid.NewString()[:8])
	path := filepath.Join(o.cfg.TempDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing temp payload: %w", err)
	}
	return path, nil
}

func cleanupTemp(paths *[]string) {
	for _, p := range *paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("temp file cleanup failed for %s: %v", p, err)
		}
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		return s[:512] + "..."
	}
	return s
}

func (o *Orchestrator) runScript(ctx context.Context, script string, probe func(map[string]json.RawMessage) bool, args ...string) (json.RawMessage, error) {
	full := append([]string{filepath.Join(o.cfg.ScriptDir, script)}, args...)
	res, err := o.runner.Run(ctx, o.cfg.WorkDir, o.cfg.Python, full...)
	if err != nil {
		return nil, err
	}
	raw, err := ExtractLastJSON(res.Stdout, probe)
	if err != nil {
		return nil, fmt.Errorf("%w; raw output: %s", err, snippet(res.Stdout))
	}
	return raw, nil
}

// IdentityResult is the outcome of identity-document verification.
type IdentityResult struct {
	IsValid         bool   `json:"isValid"`
	Reason          string `json:"reason"`
	ExtractedNumber string `json:"extractedNumber,omitempty"`
}

// VerifyIdentity checks a claimed ID number against the document images.
// The back image is optional.
func (o *Orchestrator) VerifyIdentity(ctx context.Context, front, back []byte, idNumber string) (*IdentityResult, error) {
	var temps []string
	defer cleanupTemp(&temps)

	frontPath, err := o.writeTemp("voter_front", front)
	if err != nil {
		return nil, err
	}
	temps = append(temps, frontPath)

	backPath := "NONE"
	if len(back) > 0 {
		backPath, err = o.writeTemp("voter_back", back)
		if err != nil {
			return nil, err
		}
		temps = append(temps, backPath)
	}

	raw, err := o.runScript(ctx, "verify_voter.py", HasAnyKey("match", "error"), frontPath, backPath, idNumber)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Match         bool            `json:"match"`
		Reason        string          `json:"reason"`
		ExtractedText json.RawMessage `json:"extracted_text"`
		Error         string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if payload.Error != "" {
		return nil, &BusinessError{Message: payload.Error}
	}

	result := &IdentityResult{
		IsValid:         payload.Match,
		ExtractedNumber: joinExtracted(payload.ExtractedText),
	}
	if payload.Match {
		result.Reason = "Voter ID verified successfully."
	} else {
		reason := payload.Reason
		if reason == "" {
			reason = "ID Mismatch"
		}
		result.Reason = "Verification Failed: " + reason
	}
	return result, nil
}

// joinExtracted accepts both shapes the OCR side emits: a single string or a
// list of text fragments.
func joinExtracted(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, ", ")
	}
	return ""
}

// DuplicateMatch is one candidate duplicate, scored 0-100.
type DuplicateMatch struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	TextScore  float64 `json:"text_score"`
	ImageScore float64 `json:"image_score"`
	ImageURL   string  `json:"image_url,omitempty"`
}

// DetectDuplicates ranks existing issues that resemble the given one. An
// empty slice is a valid "no duplicates" outcome.
func (o *Orchestrator) DetectDuplicates(ctx context.Context, issueID string) ([]DuplicateMatch, error) {
	raw, err := o.runScript(ctx, "detect_duplicates.py", HasAnyKey("matches", "error"), issueID, o.cfg.MongoURI, o.cfg.MongoDBName)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Matches []DuplicateMatch `json:"matches"`
		Error   string           `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if payload.Error != "" {
		return nil, &BusinessError{Message: payload.Error}
	}

	matches := payload.Matches
	if matches == nil {
		matches = []DuplicateMatch{}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

type Violation struct {
	Type       string    `json:"type"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

type TrafficResult struct {
	ViolationDetected bool        `json:"violationDetected"`
	Violations        []Violation `json:"violations"`
	LicensePlate      string      `json:"licensePlate"`
}

// DetectTrafficViolation analyzes a photo for traffic violations and reads
// the license plate when one is visible.
func (o *Orchestrator) DetectTrafficViolation(ctx context.Context, image []byte) (*TrafficResult, error) {
	var temps []string
	defer cleanupTemp(&temps)

	imagePath, err := o.writeTemp("traffic", image)
	if err != nil {
		return nil, err
	}
	temps = append(temps, imagePath)

	raw, err := o.runScript(ctx, "detect_traffic_violation.py", HasAnyKey("violation_detected", "error"), imagePath)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ViolationDetected bool        `json:"violation_detected"`
		Violations        []Violation `json:"violations"`
		LicensePlate      string      `json:"license_plate"`
		Error             string      `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if payload.Error != "" {
		return nil, &BusinessError{Message: payload.Error}
	}

	violations := payload.Violations
	if violations == nil {
		violations = []Violation{}
	}
	return &TrafficResult{
		ViolationDetected: payload.ViolationDetected,
		Violations:        violations,
		LicensePlate:      payload.LicensePlate,
	}, nil
}
