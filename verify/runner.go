package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout means the external process exceeded its wall-clock bound and was
// killed.
var ErrTimeout = errors.New("verification process timed out")

// ProcessError means the external process could not be started or exited
// non-zero. ExitCode is -1 when the process never started.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("verification process failed to start: %v", e.Err)
	}
	return fmt.Sprintf("verification process exited with code %d: %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error { return e.Err }

type RunResult struct {
	Stdout string
	Stderr string
}

// Runner invokes an external executable with captured output and a hard
// wall-clock bound. On timeout the process is killed, not waited out.
type Runner struct {
	Timeout time.Duration
}

func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) (*RunResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
		}
		return nil, &ProcessError{ExitCode: -1, Err: err}
	}
	return &RunResult{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
