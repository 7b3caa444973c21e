package engine

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Transcriber is the transcription provider contract: local audio file in, plain text out.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// WhisperClient calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperClient struct {
	client   *openai.Client
	model    string
	language string
	limiter  *rate.Limiter
}

// NewWhisperClient builds the transcription client once from configuration.
func NewWhisperClient(c Config, limiter *rate.Limiter) *WhisperClient {
	oc := openai.DefaultConfig(c.OpenAIAPIKey)
	if c.OpenAIBaseURL != "" {
		oc.BaseURL = c.OpenAIBaseURL
	}
	oc.HTTPClient = providerHTTPClient(c.TranscribeTimeout)

	model := c.TranscribeModel
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperClient{
		client:   openai.NewClientWithConfig(oc),
		model:    model,
		language: c.TranscribeLanguage,
		limiter:  limiter,
	}
}

// Transcribe uploads audioPath and returns the raw plain-text transcript.
func (w *WhisperClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := WaitLimiter(ctx, w.limiter); err != nil {
		return "", err
	}
	metrics.TranscriptionCalls.Add(1)
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Language: w.language,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		metrics.TranscriptionErrors.Add(1)
		return "", err
	}
	return resp.Text, nil
}
