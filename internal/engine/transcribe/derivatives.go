package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
)

const summaryTemperature = 0.7

// DerivativeConfig tunes the summary and title completions.
type DerivativeConfig struct {
	SummaryMaxTokens  int
	TitleMaxTokens    int
	TitleContextChars int
	Temperature       float64
	Placeholder       string
	Timeout           time.Duration
}

func (c *DerivativeConfig) defaults() {
	if c.SummaryMaxTokens <= 0 {
		c.SummaryMaxTokens = 300
	}
	if c.TitleMaxTokens <= 0 {
		c.TitleMaxTokens = 50
	}
	if c.TitleContextChars <= 0 {
		c.TitleContextChars = 1000
	}
	if c.Temperature <= 0 {
		c.Temperature = summaryTemperature
	}
	if c.Placeholder == "" {
		c.Placeholder = "Audio Transcription"
	}
}

var summaryFailure = engine.ProviderFailure{
	Stage:       engine.StageGenerating,
	GenericKind: engine.KindSummaryFailed,
	Prefix:      "summary generation failed",
	ModelLabel:  "Summary model",
}

// DerivativeGenerator produces the summary and title of a transcript concurrently.
// A failed summary fails the run; a failed title degrades to the placeholder.
type DerivativeGenerator struct {
	completer  engine.Completer
	credential engine.Credential
	cfg        DerivativeConfig
}

// NewDerivativeGenerator builds a generator. Zero config fields take defaults.
func NewDerivativeGenerator(completer engine.Completer, credential engine.Credential, cfg DerivativeConfig) *DerivativeGenerator {
	cfg.defaults()
	return &DerivativeGenerator{completer: completer, credential: credential, cfg: cfg}
}

// Generate runs both completions and waits for both to settle.
func (g *DerivativeGenerator) Generate(ctx context.Context, transcript string) (Derivatives, error) {
	var d Derivatives
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s, err := g.summary(egCtx, transcript)
		if err != nil {
			return err
		}
		d.Summary = s
		return nil
	})
	eg.Go(func() error {
		d.Title = g.title(egCtx, transcript)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return Derivatives{}, err
	}
	return d, nil
}

func (g *DerivativeGenerator) summary(ctx context.Context, transcript string) (string, error) {
	if !g.credential.Configured() {
		return "", engine.ConfigError(engine.StageGenerating)
	}
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	out, err := g.completer.Complete(ctx, engine.CompletionRequest{
		System:      engine.SummarySystemPrompt,
		Prompt:      fmt.Sprintf(engine.SummaryUserPrompt, transcript),
		MaxTokens:   g.cfg.SummaryMaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", engine.ClassifyProviderError(err, summaryFailure)
	}
	if strings.TrimSpace(out) == "" {
		return "", engine.NewError(engine.KindSummaryFailed, engine.StageGenerating,
			"summary generation returned empty text", nil)
	}
	return out, nil
}

// title never fails; every error path logs and returns the placeholder.
func (g *DerivativeGenerator) title(ctx context.Context, transcript string) string {
	if !g.credential.Configured() {
		return g.fallbackTitle(engine.ConfigError(engine.StageGenerating))
	}
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	excerpt := engine.TruncateRunes(transcript, g.cfg.TitleContextChars, "")
	out, err := g.completer.Complete(ctx, engine.CompletionRequest{
		System:      engine.TitleSystemPrompt,
		Prompt:      fmt.Sprintf(engine.TitleUserPrompt, excerpt),
		MaxTokens:   g.cfg.TitleMaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return g.fallbackTitle(engine.NewError(engine.KindTitleFailed, engine.StageGenerating,
			"title generation failed", err))
	}
	title := engine.StripQuotes(out)
	if title == "" {
		return g.fallbackTitle(engine.NewError(engine.KindTitleFailed, engine.StageGenerating,
			"title generation returned empty text", nil))
	}
	return title
}

func (g *DerivativeGenerator) fallbackTitle(err error) string {
	engine.IncrTitleFallbacks()
	slog.Warn("title generation failed, using placeholder",
		slog.String("placeholder", g.cfg.Placeholder), slog.Any("error", err))
	return g.cfg.Placeholder
}
