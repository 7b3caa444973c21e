package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ffprobeOutput is the subset of `ffprobe -show_format` JSON we read.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Prober reads audio duration with ffprobe.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
	runner      CommandRunner
}

// NewProber returns a prober. A nil runner uses ExecRunner.
func NewProber(ffprobePath string, timeout time.Duration, runner CommandRunner) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{ffprobePath: ffprobePath, timeout: timeout, runner: runner}
}

// Duration returns the duration of path formatted as M:SS.
func (p *Prober) Duration(ctx context.Context, path string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res, err := runTool(ctx, p.runner, p.ffprobePath, buildFFprobeArgs(path))
	if err != nil {
		return "", err
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return "", fmt.Errorf("decode ffprobe output: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		return "", fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return "", fmt.Errorf("invalid duration %v", secs)
	}
	return FormatDuration(secs), nil
}

// FormatDuration renders seconds as M:SS. Minutes are unbounded; fractions are dropped.
func FormatDuration(seconds float64) string {
	minutes := int(seconds / 60)
	rest := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", minutes, rest)
}

func buildFFprobeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
}
