package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
)

// YouTube audio extraction is split across two files:
//   youtube_innertube.go: Innertube / watch-page types and low-level HTTP primitives
//   youtube.go:           URL classification, audio stream selection, download

var videoIDRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/|v/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID pulls the 11-char video ID from any YouTube URL format.
func ExtractVideoID(rawURL string) string {
	m := videoIDRE.FindStringSubmatch(rawURL)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

// IsYouTubeURL reports whether rawURL points at watchable YouTube content.
func IsYouTubeURL(rawURL string) bool {
	return ExtractVideoID(rawURL) != ""
}

// YouTube downloads the best audio-only stream of a video.
type YouTube struct {
	http      *http.Client
	browser   *engine.BrowserClient
	maxBytes  int64
	playerURL string
	watchURL  string
}

// NewYouTube builds an extractor. browser may be nil.
func NewYouTube(client *http.Client, browser *engine.BrowserClient, maxBytes int64) *YouTube {
	if client == nil {
		client = engine.NewFetchClient()
	}
	return &YouTube{
		http:      client,
		browser:   browser,
		maxBytes:  maxBytes,
		playerURL: ytInnertubeURL,
		watchURL:  ytWatchURL,
	}
}

// Download writes the highest-bitrate audio-only stream of rawURL to dst.
func (y *YouTube) Download(ctx context.Context, rawURL, dst string) error {
	videoID := ExtractVideoID(rawURL)
	if videoID == "" {
		return fmt.Errorf("not a YouTube video URL: %s", rawURL)
	}
	engine.IncrYouTubeExtractions()

	format, err := y.bestAudio(ctx, videoID)
	if err != nil {
		return err
	}
	slog.Info("youtube: downloading audio stream",
		slog.String("id", videoID),
		slog.Int("itag", format.Itag),
		slog.String("mime", format.MimeType),
		slog.Int("bitrate", format.Bitrate))

	headers := map[string]string{"User-Agent": ytAndroidUA}
	if _, err := engine.DownloadToFile(ctx, y.http, format.URL, dst, y.maxBytes, headers); err != nil {
		return fmt.Errorf("youtube stream %s: %w", videoID, err)
	}
	return nil
}

// bestAudio resolves streams via the ANDROID player, falling back to the watch page.
func (y *YouTube) bestAudio(ctx context.Context, videoID string) (streamFormat, error) {
	resp, err := y.fetchPlayerANDROID(ctx, videoID)
	if err == nil {
		var f streamFormat
		if f, err = pickFromPlayer(resp); err == nil {
			return f, nil
		}
	}
	slog.Warn("youtube: player lookup failed, trying watch page",
		slog.String("id", videoID), slog.Any("err", err))

	page, err := y.fetchWatchPage(ctx, videoID)
	if err != nil {
		return streamFormat{}, err
	}
	raw := playerResponseFromHTML(page)
	if raw == nil {
		return streamFormat{}, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	var pageResp innertubePlayerResp
	if err := json.Unmarshal(raw, &pageResp); err != nil {
		return streamFormat{}, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return pickFromPlayer(pageResp)
}

func pickFromPlayer(resp innertubePlayerResp) (streamFormat, error) {
	formats, err := resp.formats()
	if err != nil {
		return streamFormat{}, err
	}
	f, ok := pickBestAudio(formats)
	if !ok {
		return streamFormat{}, errors.New("no directly downloadable audio-only stream")
	}
	return f, nil
}

// pickBestAudio returns the audio-only stream with the highest bitrate.
// Streams that only carry a signatureCipher are skipped.
func pickBestAudio(formats []streamFormat) (streamFormat, bool) {
	var best streamFormat
	found := false
	for _, f := range formats {
		if !f.isAudioOnly() || f.URL == "" {
			continue
		}
		if !found || bitrateOf(f) > bitrateOf(best) {
			best = f
			found = true
		}
	}
	return best, found
}

func bitrateOf(f streamFormat) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}
