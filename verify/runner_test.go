package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerCapturesOutput(t *testing.T) {
	r := &Runner{Timeout: 10 * time.Second}

	res, err := r.Run(context.Background(), "", "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestRunnerTimeout(t *testing.T) {
	r := &Runner{Timeout: 100 * time.Millisecond}

	start := time.Now()
	_, err := r.Run(context.Background(), "", "sleep", "5")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second, "process should be killed, not waited out")
}

func TestRunnerNonZeroExit(t *testing.T) {
	r := &Runner{Timeout: 10 * time.Second}

	_, err := r.Run(context.Background(), "", "sh", "-c", "echo boom >&2; exit 3")
	var procErr *ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, 3, procErr.ExitCode)
	assert.Contains(t, procErr.Stderr, "boom")
}

func TestRunnerSpawnFailure(t *testing.T) {
	r := &Runner{Timeout: 10 * time.Second}

	_, err := r.Run(context.Background(), "", "/nonexistent/binary")
	var procErr *ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, -1, procErr.ExitCode)
}
