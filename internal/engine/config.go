package engine

import (
	"net/http"
	"time"
)

// PlaceholderAPIKey is the value shipped in example .env files. It counts as "not configured".
const PlaceholderAPIKey = "your_openai_api_key_here"

// Config holds all engine configuration, injected from main.
type Config struct {
	UploadDir        string
	MaxUploadBytes   int64
	MaxDownloadBytes int64

	OpenAIAPIKey       string
	OpenAIBaseURL      string
	TranscribeModel    string
	TranscribeLanguage string

	LLMAPIKey         string
	LLMAPIBase        string
	LLMModel          string
	LLMTemperature    float64
	SummaryMaxTokens  int
	TitleMaxTokens    int
	TitleContextChars int
	TitlePlaceholder  string

	FFmpegPath  string
	FFprobePath string

	DownloadTimeout   time.Duration
	ProbeTimeout      time.Duration
	TranscodeTimeout  time.Duration
	TranscribeTimeout time.Duration
	CompletionTimeout time.Duration

	ProviderRPS   float64
	ProviderBurst int

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = watch-page scrape uses HTTPClient
}

// Credential is a provider API key. The zero value is unconfigured.
type Credential string

// Configured reports whether the key is set to something other than the placeholder.
func (c Credential) Configured() bool {
	return c != "" && c != PlaceholderAPIKey
}
