package transcribe

import (
	"context"
	"strings"
	"time"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
)

var transcriptionFailure = engine.ProviderFailure{
	Stage:       engine.StageTranscribing,
	GenericKind: engine.KindProviderGenericFailure,
	Prefix:      "transcription failed",
	ModelLabel:  "Whisper model",
}

// TranscriptionClient enforces the transcription contract around a provider:
// credential first, deadline per call, classified errors, no empty transcripts.
type TranscriptionClient struct {
	provider   engine.Transcriber
	credential engine.Credential
	timeout    time.Duration
}

// NewTranscriptionClient wraps provider.
func NewTranscriptionClient(provider engine.Transcriber, credential engine.Credential, timeout time.Duration) *TranscriptionClient {
	return &TranscriptionClient{provider: provider, credential: credential, timeout: timeout}
}

// Transcribe returns the raw transcript of audioPath. The text is returned
// untrimmed; only its emptiness is judged on the trimmed form.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if !c.credential.Configured() {
		return "", engine.ConfigError(engine.StageTranscribing)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.provider.Transcribe(ctx, audioPath)
	if err != nil {
		return "", engine.ClassifyProviderError(err, transcriptionFailure)
	}
	if strings.TrimSpace(text) == "" {
		return "", engine.NewError(engine.KindEmptyTranscript, engine.StageTranscribing,
			"transcription result is empty, please check the audio quality", nil)
	}
	return text, nil
}
