package audioserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_voice2word/internal/engine/transcribe"
	"github.com/anatolykoptev/go_voice2word/internal/toolutil"
)

// TranscribeURLInput is the input of the transcribe_url tool.
type TranscribeURLInput struct {
	URL string `json:"url" jsonschema:"Direct link to an audio file, or a YouTube video URL"`
}

// ConfigCheckInput is the (empty) input of the config_check tool.
type ConfigCheckInput struct{}

// RegisterTools registers the MCP tools on server: transcribe_url, config_check.
func RegisterTools(server *mcp.Server, svc *Service) {
	registerTranscribeURL(server, svc)
	registerConfigCheck(server, svc)
}

func registerTranscribeURL(server *mcp.Server, svc *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcribe_url",
		Description: "Download audio from a URL (direct audio link or YouTube video), transcribe it with Whisper, and return the full transcript with a short summary, a title, the duration (M:SS) and the character count. Temporary files are always removed.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input TranscribeURLInput) (*mcp.CallToolResult, *transcribe.Result, error) {
		u := toolutil.NormURL(input.URL)
		if u == "" {
			return nil, nil, fmt.Errorf("url is required")
		}
		res, err := svc.Pipeline.Run(ctx, transcribe.Request{Kind: transcribe.SourceURL, URL: u})
		if err != nil {
			return nil, nil, toolutil.ToolError("transcribe_url", err)
		}
		return nil, res, nil
	})
}

func registerConfigCheck(server *mcp.Server, svc *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "config_check",
		Description: "Report whether the transcription provider credential is configured, which models and language are used, and which ffmpeg/ffprobe binaries are invoked.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ ConfigCheckInput) (*mcp.CallToolResult, ConfigStatus, error) {
		return nil, svc.Status, nil
	})
}
