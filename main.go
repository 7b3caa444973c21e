// go_voice2word: audio transcription service.
//
// Accepts an uploaded audio file or a link (direct audio or YouTube), transcribes
// it with an OpenAI-compatible Whisper endpoint, and returns the transcript with a
// generated summary and title. Serves a JSON HTTP API (fiber) and an MCP server
// exposing transcribe_url and config_check.
package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_voice2word/internal/audioserver"
	"github.com/anatolykoptev/go_voice2word/internal/engine"
	"github.com/anatolykoptev/go_voice2word/internal/engine/media"
	"github.com/anatolykoptev/go_voice2word/internal/engine/sources"
	"github.com/anatolykoptev/go_voice2word/internal/engine/transcribe"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", slog.Any("error", err))
	}

	apiPort := env.Str("API_PORT", "5000")
	mcpPort := env.Str("MCP_PORT", "8892")
	clientURL := env.Str("CLIENT_URL", "http://localhost:3000")

	c := loadConfig()
	if err := os.MkdirAll(c.UploadDir, 0o755); err != nil {
		slog.Error("upload dir init failed", slog.String("dir", c.UploadDir), slog.Any("error", err))
		os.Exit(1)
	}

	svc := buildService(c)
	if !svc.Status.Configured {
		slog.Error("OPENAI_API_KEY is missing or still the placeholder, transcription requests will fail")
	}

	slog.Info("starting go_voice2word",
		slog.String("api_port", apiPort),
		slog.String("mcp_port", mcpPort),
		slog.String("upload_dir", c.UploadDir),
	)

	app := audioserver.NewApp(svc, audioserver.AppConfig{
		ClientURL: clientURL,
		Metrics:   engine.FormatMetrics,
	})
	go func() {
		if err := app.Listen(":" + apiPort); err != nil {
			slog.Error("http api failed", slog.Any("error", err))
		}
	}()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Warn("http api shutdown", slog.Any("error", err))
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_voice2word",
		Version: version,
	}, nil)
	audioserver.RegisterTools(server, svc)
	slog.Info("tools registered", slog.Int("count", 2))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_voice2word",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 900 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func loadConfig() engine.Config {
	openAIKey := env.Str("OPENAI_API_KEY", "")
	openAIBase := env.Str("OPENAI_BASE_URL", "https://api.openai.com/v1")

	c := engine.Config{
		UploadDir:        env.Str("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:   int64(env.Int("MAX_UPLOAD_BYTES", audioserver.DefaultMaxUploadBytes)),
		MaxDownloadBytes: int64(env.Int("MAX_DOWNLOAD_BYTES", 200<<20)),

		OpenAIAPIKey:       openAIKey,
		OpenAIBaseURL:      openAIBase,
		TranscribeModel:    env.Str("TRANSCRIBE_MODEL", "whisper-1"),
		TranscribeLanguage: env.Str("TRANSCRIBE_LANGUAGE", "zh"),

		// Completions default to the same OpenAI account as transcription.
		LLMAPIKey:         env.Str("LLM_API_KEY", openAIKey),
		LLMAPIBase:        env.Str("LLM_API_BASE", openAIBase),
		LLMModel:          env.Str("LLM_MODEL", "gpt-3.5-turbo"),
		LLMTemperature:    env.Float("LLM_TEMPERATURE", 0.7),
		SummaryMaxTokens:  env.Int("SUMMARY_MAX_TOKENS", 300),
		TitleMaxTokens:    env.Int("TITLE_MAX_TOKENS", 50),
		TitleContextChars: env.Int("TITLE_CONTEXT_CHARS", 1000),
		TitlePlaceholder:  env.Str("TITLE_PLACEHOLDER", "Audio Transcription"),

		FFmpegPath:  env.Str("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: env.Str("FFPROBE_PATH", "ffprobe"),

		DownloadTimeout:   env.Duration("DOWNLOAD_TIMEOUT", 5*time.Minute),
		ProbeTimeout:      env.Duration("PROBE_TIMEOUT", 30*time.Second),
		TranscodeTimeout:  env.Duration("TRANSCODE_TIMEOUT", 5*time.Minute),
		TranscribeTimeout: env.Duration("TRANSCRIBE_TIMEOUT", 10*time.Minute),
		CompletionTimeout: env.Duration("COMPLETION_TIMEOUT", 60*time.Second),

		ProviderRPS:   env.Float("PROVIDER_RPS", 5),
		ProviderBurst: env.Int("PROVIDER_BURST", 5),

		HTTPClient: engine.NewFetchClient(),
	}

	bc, err := engine.NewBrowserClient(env.Str("WEBSHARE_API_KEY", ""))
	if err != nil {
		slog.Warn("stealth client init failed, watch pages use plain http", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}
	return c
}

// buildService wires the pipeline. Provider clients are built once and shared.
func buildService(c engine.Config) *audioserver.Service {
	limiter := rate.NewLimiter(rate.Limit(c.ProviderRPS), c.ProviderBurst)

	transcriber := transcribe.NewTranscriptionClient(
		engine.NewWhisperClient(c, limiter), engine.Credential(c.OpenAIAPIKey), c.TranscribeTimeout)
	derivatives := transcribe.NewDerivativeGenerator(
		engine.NewLLMCompleter(c, limiter), engine.Credential(c.LLMAPIKey), transcribe.DerivativeConfig{
			SummaryMaxTokens:  c.SummaryMaxTokens,
			TitleMaxTokens:    c.TitleMaxTokens,
			TitleContextChars: c.TitleContextChars,
			Temperature:       c.LLMTemperature,
			Placeholder:       c.TitlePlaceholder,
			Timeout:           c.CompletionTimeout,
		})

	pipeline := transcribe.NewPipeline(transcribe.Deps{
		UploadDir:   c.UploadDir,
		Downloader:  sources.NewAcquirer(c.HTTPClient, c.BrowserClient, c.MaxDownloadBytes),
		Prober:      media.NewProber(c.FFprobePath, c.ProbeTimeout, nil),
		Normalizer:  media.NewNormalizer(c.FFmpegPath, c.TranscodeTimeout, nil),
		Transcriber: transcriber,
		Derivatives: derivatives,

		DownloadTimeout: c.DownloadTimeout,
	})

	return &audioserver.Service{
		Pipeline:       pipeline,
		UploadDir:      c.UploadDir,
		MaxUploadBytes: c.MaxUploadBytes,
		Status: audioserver.ConfigStatus{
			Configured:         engine.Credential(c.OpenAIAPIKey).Configured(),
			TranscriptionModel: c.TranscribeModel,
			CompletionModel:    c.LLMModel,
			Language:           c.TranscribeLanguage,
			FFmpeg:             c.FFmpegPath,
			FFprobe:            c.FFprobePath,
		},
	}
}
