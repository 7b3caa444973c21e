// Package toolutil provides shared helper functions for go_voice2word MCP tools.
package toolutil

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
)

// NormURL trims whitespace and surrounding angle brackets from a pasted link.
func NormURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<")
	raw = strings.TrimSuffix(raw, ">")
	return strings.TrimSpace(raw)
}

// ToolError turns a pipeline error into one that is safe to hand back to an
// MCP client. The internal cause is logged, never returned.
func ToolError(tool string, err error) error {
	if err == nil {
		return nil
	}
	slog.Warn("tool failed",
		slog.String("tool", tool),
		slog.String("kind", string(engine.KindOf(err))),
		slog.Any("error", err))
	return errors.New(engine.UserMessage(err))
}
