package media

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Canonical format sent to the transcription provider.
const (
	CanonicalExt     = ".mp3"
	CanonicalCodec   = "libmp3lame"
	CanonicalBitrate = "128k"
)

// NeedsNormalization reports whether path must be transcoded before transcription.
// This only looks at the file name: anything already named *.mp3 (any case) is
// trusted as canonical, even if the bytes inside are some other container.
func NeedsNormalization(path string) bool {
	return !strings.HasSuffix(strings.ToLower(path), CanonicalExt)
}

// Normalizer transcodes audio into the canonical format with ffmpeg.
type Normalizer struct {
	ffmpegPath string
	timeout    time.Duration
	runner     CommandRunner
	stat       func(name string) (os.FileInfo, error)
}

// NewNormalizer returns a normalizer. A nil runner uses ExecRunner.
func NewNormalizer(ffmpegPath string, timeout time.Duration, runner CommandRunner) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Normalizer{ffmpegPath: ffmpegPath, timeout: timeout, runner: runner, stat: os.Stat}
}

// Normalize writes a canonical copy of inputPath to outPath.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outPath string) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	if _, err := runTool(ctx, n.runner, n.ffmpegPath, buildFFmpegArgs(inputPath, outPath)); err != nil {
		return err
	}
	if _, err := n.stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg completed but output file is missing: %w", err)
	}
	return nil
}

// buildFFmpegArgs builds transcoding args for 128 kbps mp3 output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-codec:a", CanonicalCodec,
		"-b:a", CanonicalBitrate,
		"-f", "mp3",
		outPath,
	}
}
