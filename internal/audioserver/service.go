// Package audioserver exposes the transcription pipeline over HTTP (fiber) and MCP.
package audioserver

import (
	"context"

	"github.com/anatolykoptev/go_voice2word/internal/engine/transcribe"
)

// Runner runs one transcription request.
type Runner interface {
	Run(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)
}

// ConfigStatus is the public view of provider and tool configuration.
type ConfigStatus struct {
	Configured         bool   `json:"configured"`
	TranscriptionModel string `json:"transcriptionModel"`
	CompletionModel    string `json:"completionModel"`
	Language           string `json:"language"`
	FFmpeg             string `json:"ffmpeg"`
	FFprobe            string `json:"ffprobe"`
}

// Service holds what the HTTP and MCP surfaces share.
type Service struct {
	Pipeline       Runner
	UploadDir      string
	MaxUploadBytes int64
	Status         ConfigStatus
}
