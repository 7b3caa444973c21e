// Package transcribe runs one audio submission end to end: acquire, probe,
// normalize, transcribe, summarize and title, then clean up every temp file.
package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
	"github.com/anatolykoptev/go_voice2word/internal/engine/media"
)

const slowRunThreshold = 2 * time.Minute

// DerivativeSource produces summary and title for a transcript.
type DerivativeSource interface {
	Generate(ctx context.Context, transcript string) (Derivatives, error)
}

// Deps are the collaborators of a Pipeline. Provider clients are built once
// by the caller and shared across runs.
type Deps struct {
	UploadDir   string
	Downloader  Downloader
	Prober      DurationProber
	Normalizer  AudioNormalizer
	Transcriber engine.Transcriber
	Derivatives DerivativeSource

	// DownloadTimeout bounds URL acquisition. Zero means no deadline.
	DownloadTimeout time.Duration
}

// Pipeline is safe for concurrent use; each Run owns its own artifact set.
type Pipeline struct {
	deps Deps
	now  func() time.Time
}

// NewPipeline returns a pipeline over deps.
func NewPipeline(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, now: time.Now}
}

// Run processes req. On return every file the run created or took over has
// been deleted, whether it succeeded or not.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	engine.IncrTranscribeRequests()

	artifacts := engine.NewArtifactSet(p.deps.UploadDir)
	if req.Kind == SourceFile && req.FilePath != "" {
		artifacts.Track(req.FilePath)
	}
	defer func() {
		report(req, engine.StageCleanup)
		artifacts.Release()
	}()

	var res *Result
	err := engine.TrackOperation(ctx, "transcribe", slowRunThreshold, func(ctx context.Context) error {
		var err error
		res, err = p.run(ctx, req, artifacts)
		return err
	})
	if err != nil {
		engine.IncrTranscribeErrors()
		slog.Error("transcribe: run failed",
			slog.String("kind", string(engine.KindOf(err))),
			slog.String("source", string(req.Kind)),
			slog.Any("error", err))
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, artifacts *engine.ArtifactSet) (*Result, error) {
	report(req, engine.StageAcquiring)
	audioPath, err := p.acquire(ctx, req, artifacts)
	if err != nil {
		return nil, err
	}

	report(req, engine.StageProbing)
	duration := p.probe(ctx, audioPath)

	if media.NeedsNormalization(audioPath) {
		report(req, engine.StageNormalizing)
		audioPath, err = p.normalize(ctx, audioPath, artifacts)
		if err != nil {
			return nil, err
		}
	}

	report(req, engine.StageTranscribing)
	text, err := p.deps.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	slog.Info("transcribe: transcript ready", slog.Int("chars", engine.CharCount(text)))

	report(req, engine.StageGenerating)
	d, err := p.deps.Derivatives.Generate(ctx, text)
	if err != nil {
		return nil, err
	}

	report(req, engine.StageAssembling)
	return &Result{
		Success:   true,
		Title:     d.Title,
		Summary:   d.Summary,
		FullText:  text,
		Duration:  duration,
		WordCount: engine.CharCount(text),
		Timestamp: p.now().UTC().Format(timestampLayout),
	}, nil
}

func (p *Pipeline) acquire(ctx context.Context, req Request, artifacts *engine.ArtifactSet) (string, error) {
	switch {
	case req.Kind == SourceFile && req.FilePath != "":
		slog.Info("transcribe: using uploaded file",
			slog.String("name", req.OriginalName), slog.String("path", req.FilePath))
		return req.FilePath, nil

	case req.Kind == SourceURL && strings.TrimSpace(req.URL) != "":
		dst := artifacts.NewPath("temp", media.CanonicalExt)
		slog.Info("transcribe: downloading", slog.String("url", req.URL))

		dctx, cancel := withTimeout(ctx, p.deps.DownloadTimeout)
		defer cancel()
		if err := p.deps.Downloader.Download(dctx, req.URL, dst); err != nil {
			if engine.IsDeadline(err) {
				return "", engine.TimeoutError(engine.StageAcquiring, err)
			}
			return "", engine.NewError(engine.KindAcquisitionFailed, engine.StageAcquiring,
				"unable to download the audio file, please check the URL", err)
		}
		if _, err := os.Stat(dst); err != nil {
			return "", engine.NewError(engine.KindAcquisitionFailed, engine.StageAcquiring,
				"unable to download the audio file, please check the URL", err)
		}
		return dst, nil

	default:
		return "", engine.NewError(engine.KindInvalidRequest, engine.StageAcquiring,
			"please provide an audio file or URL", nil)
	}
}

// probe is best-effort: any failure yields a nil duration.
func (p *Pipeline) probe(ctx context.Context, path string) *string {
	if p.deps.Prober == nil {
		return nil
	}
	d, err := p.deps.Prober.Duration(ctx, path)
	if err != nil {
		engine.IncrProbeFailures()
		err = engine.NewError(engine.KindProbeUnavailable, engine.StageProbing, "duration unavailable", err)
		slog.Warn("transcribe: duration unavailable", slog.String("path", path),
			slog.String("kind", string(engine.KindOf(err))), slog.Any("error", err))
		return nil
	}
	return &d
}

func (p *Pipeline) normalize(ctx context.Context, in string, artifacts *engine.ArtifactSet) (string, error) {
	out := artifacts.NewPath("converted", media.CanonicalExt)
	engine.IncrTranscodes()
	if err := p.deps.Normalizer.Normalize(ctx, in, out); err != nil {
		if engine.IsDeadline(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", engine.TimeoutError(engine.StageNormalizing, err)
		}
		return "", engine.NewError(engine.KindNormalizationFailed, engine.StageNormalizing,
			"audio format conversion failed", err)
	}
	slog.Info("transcribe: normalized", slog.String("in", in), slog.String("out", out))
	return out, nil
}

func report(req Request, stage string) {
	slog.Debug("transcribe: stage", slog.String("stage", stage))
	if req.OnStage != nil {
		req.OnStage(stage)
	}
}
