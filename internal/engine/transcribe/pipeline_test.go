package transcribe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
	"github.com/anatolykoptev/go_voice2word/internal/engine/sources"
)

const validKey = engine.Credential("sk-test")

type fakeDownloader struct {
	body string
	err  error
	wait bool
}

func (f *fakeDownloader) Download(ctx context.Context, _, dst string) error {
	if f.wait {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte(f.body), 0o644)
}

type fakeProber struct {
	duration string
	err      error
}

func (f *fakeProber) Duration(context.Context, string) (string, error) {
	return f.duration, f.err
}

type fakeNormalizer struct {
	calls  atomic.Int32
	inputs []string
	err    error
}

func (f *fakeNormalizer) Normalize(_ context.Context, in, out string) error {
	f.calls.Add(1)
	f.inputs = append(f.inputs, in)
	// Partial output is left behind on failure, like a killed ffmpeg.
	if err := os.WriteFile(out, []byte("mp3"), 0o644); err != nil {
		return err
	}
	return f.err
}

type fakeProvider struct {
	calls atomic.Int32
	text  string
	err   error
	path  string
}

func (f *fakeProvider) Transcribe(_ context.Context, path string) (string, error) {
	f.calls.Add(1)
	f.path = path
	return f.text, f.err
}

type fakeCompleter struct {
	mu      sync.Mutex
	reqs    []engine.CompletionRequest
	summary func() (string, error)
	title   func() (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, req engine.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if req.System == engine.TitleSystemPrompt {
		return f.title()
	}
	return f.summary()
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func okCompleter() *fakeCompleter {
	return &fakeCompleter{
		summary: func() (string, error) { return "A short test recording.", nil },
		title:   func() (string, error) { return `"Test Talk"`, nil },
	}
}

type harness struct {
	dir        string
	downloader *fakeDownloader
	prober     *fakeProber
	normalizer *fakeNormalizer
	provider   *fakeProvider
	completer  *fakeCompleter
	credential engine.Credential
	download   time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		dir:        t.TempDir(),
		downloader: &fakeDownloader{body: "remote-audio"},
		prober:     &fakeProber{duration: "0:03"},
		normalizer: &fakeNormalizer{},
		provider:   &fakeProvider{text: "Hello world this is a test.\n"},
		completer:  okCompleter(),
		credential: validKey,
	}
}

func (h *harness) pipeline() *Pipeline {
	p := NewPipeline(Deps{
		UploadDir:   h.dir,
		Downloader:  h.downloader,
		Prober:      h.prober,
		Normalizer:  h.normalizer,
		Transcriber: NewTranscriptionClient(h.provider, h.credential, time.Minute),
		Derivatives: NewDerivativeGenerator(h.completer, h.credential, DerivativeConfig{
			Placeholder: "Audio Transcription",
			Timeout:     time.Minute,
		}),

		DownloadTimeout: h.download,
	})
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 123_000_000, time.UTC) }
	return p
}

func (h *harness) upload(t *testing.T, name string) Request {
	t.Helper()
	path := filepath.Join(h.dir, engine.UniqueName("audio", filepath.Ext(name)))
	require.NoError(t, os.WriteFile(path, []byte("audio-bytes"), 0o644))
	return Request{Kind: SourceFile, FilePath: path, OriginalName: name}
}

func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "temp files left behind")
}

func TestRunUploadedWav(t *testing.T) {
	h := newHarness(t)
	var stages []string
	req := h.upload(t, "talk.wav")
	req.OnStage = func(s string) { stages = append(stages, s) }

	res, err := h.pipeline().Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Test Talk", res.Title)
	assert.Equal(t, "A short test recording.", res.Summary)
	assert.Equal(t, "Hello world this is a test.\n", res.FullText)
	assert.Equal(t, 28, res.WordCount)
	require.NotNil(t, res.Duration)
	assert.Equal(t, "0:03", *res.Duration)
	assert.Equal(t, "2026-03-01T12:30:45.123Z", res.Timestamp)

	assert.Equal(t, int32(1), h.normalizer.calls.Load())
	assert.True(t, strings.HasPrefix(filepath.Base(h.provider.path), "converted-"))
	assert.Equal(t, ".mp3", filepath.Ext(h.provider.path))

	assert.Equal(t, []string{
		engine.StageAcquiring, engine.StageProbing, engine.StageNormalizing,
		engine.StageTranscribing, engine.StageGenerating, engine.StageAssembling,
		engine.StageCleanup,
	}, stages)
	h.assertClean(t)
}

func TestRunSkipsNormalizeForMP3(t *testing.T) {
	for _, name := range []string{"episode.mp3", "EPISODE.MP3", "mixed.Mp3"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			req := h.upload(t, name)
			_, err := h.pipeline().Run(context.Background(), req)
			require.NoError(t, err)
			assert.Zero(t, h.normalizer.calls.Load())
			assert.Equal(t, req.FilePath, h.provider.path)
			h.assertClean(t)
		})
	}
}

func TestRunURLSource(t *testing.T) {
	h := newHarness(t)
	res, err := h.pipeline().Run(context.Background(), Request{Kind: SourceURL, URL: "https://example.com/a.mp3"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, h.normalizer.calls.Load(), "downloads are saved as .mp3")
	assert.True(t, strings.HasPrefix(filepath.Base(h.provider.path), "temp-"))
	h.assertClean(t)
}

func TestRunProbeFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.prober.err = errors.New("ffprobe: not found")

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	res, err := h.pipeline().Run(context.Background(), h.upload(t, "talk.m4a"))
	require.NoError(t, err)
	assert.Nil(t, res.Duration)
	assert.Contains(t, logs.String(), `"kind":"ProbeUnavailable"`)
	assert.Contains(t, logs.String(), "ffprobe: not found")
	h.assertClean(t)
}

func TestRunCleansUpOnEveryFailure(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		source  SourceKind
		kind    engine.Kind
		message string
	}{
		{
			name:    "download",
			setup:   func(h *harness) { h.downloader.err = errors.New("status 404") },
			source:  SourceURL,
			kind:    engine.KindAcquisitionFailed,
			message: "unable to download",
		},
		{
			name:    "normalize",
			setup:   func(h *harness) { h.normalizer.err = errors.New("ffmpeg exit 1") },
			source:  SourceFile,
			kind:    engine.KindNormalizationFailed,
			message: "audio format conversion failed",
		},
		{
			name:    "transcribe",
			setup:   func(h *harness) { h.provider.err = errors.New("connection reset") },
			source:  SourceFile,
			kind:    engine.KindProviderGenericFailure,
			message: "transcription failed: connection reset",
		},
		{
			name:    "empty transcript",
			setup:   func(h *harness) { h.provider.text = " \n\t" },
			source:  SourceFile,
			kind:    engine.KindEmptyTranscript,
			message: "transcription result is empty",
		},
		{
			name: "summary",
			setup: func(h *harness) {
				h.completer.summary = func() (string, error) { return "", errors.New("upstream 502") }
			},
			source:  SourceFile,
			kind:    engine.KindSummaryFailed,
			message: "summary generation failed: upstream 502",
		},
		{
			name: "blank summary",
			setup: func(h *harness) {
				h.completer.summary = func() (string, error) { return "  ", nil }
			},
			source:  SourceFile,
			kind:    engine.KindSummaryFailed,
			message: "summary generation returned empty text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)
			req := Request{Kind: SourceURL, URL: "https://example.com/x"}
			if tt.source == SourceFile {
				req = h.upload(t, "talk.wav")
			}

			res, err := h.pipeline().Run(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, engine.KindOf(err))
			assert.Contains(t, engine.UserMessage(err), tt.message)
			h.assertClean(t)
		})
	}
}

func TestRunEmptyTranscriptSkipsDerivatives(t *testing.T) {
	h := newHarness(t)
	h.provider.text = ""
	_, err := h.pipeline().Run(context.Background(), h.upload(t, "talk.mp3"))
	require.Error(t, err)
	assert.Equal(t, engine.KindEmptyTranscript, engine.KindOf(err))
	assert.Zero(t, h.completer.calls())
}

func TestRunTitleFailureUsesPlaceholder(t *testing.T) {
	titles := map[string]func() (string, error){
		"error":       func() (string, error) { return "", errors.New("boom") },
		"only quotes": func() (string, error) { return `“”`, nil },
	}
	for name, title := range titles {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.completer.title = title
			res, err := h.pipeline().Run(context.Background(), h.upload(t, "talk.mp3"))
			require.NoError(t, err)
			assert.Equal(t, "Audio Transcription", res.Title)
			assert.Equal(t, "A short test recording.", res.Summary)
		})
	}
}

func TestRunSummaryErrorsAreDistinct(t *testing.T) {
	causes := map[engine.Kind]error{
		engine.KindProviderQuotaExhausted:    &openai.APIError{Code: "insufficient_quota", Message: "quota", HTTPStatusCode: 429},
		engine.KindProviderInvalidCredential: &openai.APIError{Code: "invalid_api_key", Message: "bad key", HTTPStatusCode: 401},
		engine.KindProviderModelUnavailable:  &openai.APIError{Code: "model_not_found", Message: "no model", HTTPStatusCode: 404},
		engine.KindSummaryFailed:             errors.New("socket hang up"),
	}
	seen := map[string]engine.Kind{}
	for kind, cause := range causes {
		h := newHarness(t)
		h.completer.summary = func() (string, error) { return "", cause }
		_, err := h.pipeline().Run(context.Background(), h.upload(t, "talk.mp3"))
		require.Error(t, err)
		assert.Equal(t, kind, engine.KindOf(err))

		msg := engine.UserMessage(err)
		_, dup := seen[msg]
		assert.False(t, dup, "message %q reused", msg)
		seen[msg] = kind
	}
}

func TestRunMissingCredential(t *testing.T) {
	for _, key := range []engine.Credential{"", engine.PlaceholderAPIKey} {
		h := newHarness(t)
		h.credential = key
		_, err := h.pipeline().Run(context.Background(), h.upload(t, "talk.mp3"))
		require.Error(t, err)
		assert.Equal(t, engine.KindConfiguration, engine.KindOf(err))
		assert.Zero(t, h.provider.calls.Load())
		assert.Zero(t, h.completer.calls())
		h.assertClean(t)
	}
}

func TestRunNoSource(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline().Run(context.Background(), Request{Kind: SourceURL, URL: "   "})
	require.Error(t, err)
	assert.Equal(t, engine.KindInvalidRequest, engine.KindOf(err))
	assert.Equal(t, http.StatusBadRequest, engine.HTTPStatus(err))
}

func TestRunDownloadTimeout(t *testing.T) {
	h := newHarness(t)
	h.downloader.wait = true
	h.download = 20 * time.Millisecond
	_, err := h.pipeline().Run(context.Background(), Request{Kind: SourceURL, URL: "https://example.com/slow.mp3"})
	require.Error(t, err)
	assert.Equal(t, engine.KindExternalTimeout, engine.KindOf(err))
	assert.Equal(t, http.StatusGatewayTimeout, engine.HTTPStatus(err))
	h.assertClean(t)
}

func TestRunUnreachableURLLeavesNoFiles(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h := newHarness(t)
	p := h.pipeline()
	p.deps.Downloader = sources.NewAcquirer(srv.Client(), nil, 1<<20)

	_, err := p.Run(context.Background(), Request{Kind: SourceURL, URL: srv.URL + "/missing.mp3"})
	require.Error(t, err)
	assert.Equal(t, engine.KindAcquisitionFailed, engine.KindOf(err))
	assert.GreaterOrEqual(t, engine.HTTPStatus(err), 400)
	assert.Zero(t, h.provider.calls.Load())
	h.assertClean(t)
}

func TestTitlePromptIsTruncated(t *testing.T) {
	c := okCompleter()
	g := NewDerivativeGenerator(c, validKey, DerivativeConfig{TitleContextChars: 5})
	d, err := g.Generate(context.Background(), "你好世界这是一个测试")
	require.NoError(t, err)
	assert.Equal(t, "Test Talk", d.Title)

	for _, req := range c.reqs {
		if req.System == engine.TitleSystemPrompt {
			assert.Equal(t, "Write a title for the following content:\n\n你好世界这...", req.Prompt)
			assert.Equal(t, 50, req.MaxTokens)
		} else {
			assert.Equal(t, "Write a summary of about 200 characters for the following content:\n\n你好世界这是一个测试", req.Prompt)
			assert.Equal(t, 300, req.MaxTokens)
			assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		}
	}
	assert.Len(t, c.reqs, 2)
}
