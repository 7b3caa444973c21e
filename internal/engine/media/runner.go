// Package media wraps ffprobe and ffmpeg: duration probing and transcoding
// into the canonical format the transcription provider accepts.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandResult is one external process execution response.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// runTool runs name under its own deadline. A killed process caused by the
// deadline is reported as context.DeadlineExceeded so callers can classify it.
func runTool(ctx context.Context, runner CommandRunner, name string, args []string) (CommandResult, error) {
	res, err := runner.Run(ctx, name, args...)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", name, ctxErr)
	}
	return res, fmt.Errorf("%s exit %d: %s: %w", name, res.ExitCode, stderrTail(res.Stderr), err)
}

// stderrTail keeps the last line-ish chunk of tool output for logs.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	const limit = 300
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}
