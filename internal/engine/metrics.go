package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	TranscribeRequests  atomic.Int64
	TranscribeErrors    atomic.Int64
	Downloads           atomic.Int64
	DownloadErrors      atomic.Int64
	YouTubeExtractions  atomic.Int64
	ProbeFailures       atomic.Int64
	Transcodes          atomic.Int64
	TranscriptionCalls  atomic.Int64
	TranscriptionErrors atomic.Int64
	LLMCalls            atomic.Int64
	LLMErrors           atomic.Int64
	TitleFallbacks      atomic.Int64
	ArtifactsRemoved    atomic.Int64
	CleanupErrors       atomic.Int64
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"transcribe_requests":  metrics.TranscribeRequests.Load(),
		"transcribe_errors":    metrics.TranscribeErrors.Load(),
		"downloads":            metrics.Downloads.Load(),
		"download_errors":      metrics.DownloadErrors.Load(),
		"youtube_extractions":  metrics.YouTubeExtractions.Load(),
		"probe_failures":       metrics.ProbeFailures.Load(),
		"transcodes":           metrics.Transcodes.Load(),
		"transcription_calls":  metrics.TranscriptionCalls.Load(),
		"transcription_errors": metrics.TranscriptionErrors.Load(),
		"llm_calls":            metrics.LLMCalls.Load(),
		"llm_errors":           metrics.LLMErrors.Load(),
		"title_fallbacks":      metrics.TitleFallbacks.Load(),
		"artifacts_removed":    metrics.ArtifactsRemoved.Load(),
		"cleanup_errors":       metrics.CleanupErrors.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"transcribe_requests", "transcribe_errors",
		"downloads", "download_errors", "youtube_extractions",
		"probe_failures", "transcodes",
		"transcription_calls", "transcription_errors",
		"llm_calls", "llm_errors", "title_fallbacks",
		"artifacts_removed", "cleanup_errors",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrTranscribeRequests() { metrics.TranscribeRequests.Add(1) }
func IncrTranscribeErrors()   { metrics.TranscribeErrors.Add(1) }
func IncrYouTubeExtractions() { metrics.YouTubeExtractions.Add(1) }
func IncrProbeFailures()      { metrics.ProbeFailures.Add(1) }
func IncrTranscodes()         { metrics.Transcodes.Add(1) }
func IncrTitleFallbacks()     { metrics.TitleFallbacks.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
