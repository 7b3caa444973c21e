// Package sources resolves remote audio sources into local files.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
)

// Acquirer downloads a remote audio source to a local path.
// YouTube watch links go through stream extraction; anything else is a plain GET.
type Acquirer struct {
	http     *http.Client
	youtube  *YouTube
	maxBytes int64
}

// NewAcquirer builds an acquirer. client and browser may be nil.
func NewAcquirer(client *http.Client, browser *engine.BrowserClient, maxBytes int64) *Acquirer {
	if client == nil {
		client = engine.NewFetchClient()
	}
	return &Acquirer{
		http:     client,
		youtube:  NewYouTube(client, browser, maxBytes),
		maxBytes: maxBytes,
	}
}

// Download writes the audio behind rawURL to dst.
func (a *Acquirer) Download(ctx context.Context, rawURL, dst string) error {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %s", rawURL)
	}

	if IsYouTubeURL(rawURL) {
		return a.youtube.Download(ctx, rawURL, dst)
	}
	if _, err := engine.DownloadToFile(ctx, a.http, rawURL, dst, a.maxBytes, nil); err != nil {
		return fmt.Errorf("download %s: %w", u.Host, err)
	}
	return nil
}
