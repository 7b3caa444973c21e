package transcribe

import (
	"context"
	"time"
)

// SourceKind says where the audio comes from.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// Request is one user submission. For SourceFile, FilePath is an upload the
// caller already validated and stored; the pipeline takes ownership of it.
type Request struct {
	Kind         SourceKind
	FilePath     string
	OriginalName string
	URL          string

	// OnStage, if set, is called on every stage transition.
	OnStage func(stage string)
}

// Result is the response payload of a successful run.
type Result struct {
	Success   bool    `json:"success"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	FullText  string  `json:"fullText"`
	Duration  *string `json:"duration"`
	WordCount int     `json:"wordCount"`
	Timestamp string  `json:"timestamp"`
}

// Derivatives are the texts generated from a transcript.
type Derivatives struct {
	Summary string
	Title   string
}

// Downloader resolves a remote URL into a local file.
type Downloader interface {
	Download(ctx context.Context, rawURL, dst string) error
}

// DurationProber reads the duration of a local audio file as M:SS.
type DurationProber interface {
	Duration(ctx context.Context, path string) (string, error)
}

// AudioNormalizer transcodes a local file into the canonical format.
type AudioNormalizer interface {
	Normalize(ctx context.Context, inputPath, outPath string) error
}

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
