package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
	"golang.org/x/net/html"
)

// YouTube Innertube API: low-level constants, types and HTTP primitives.
// Stream selection and downloading live in youtube.go.

const (
	ytInnertubeURL   = "https://www.youtube.com/youtubei/v1/player"
	ytWatchURL       = "https://www.youtube.com/watch?v="
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
)

// --- ANDROID client types (/player endpoint) ---

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

// innertubePlayerResp is shared by the /player endpoint and ytInitialPlayerResponse.
type innertubePlayerResp struct {
	StreamingData *struct {
		AdaptiveFormats []streamFormat `json:"adaptiveFormats"`
		Formats         []streamFormat `json:"formats"`
	} `json:"streamingData"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type streamFormat struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	SignatureCipher string `json:"signatureCipher"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	AverageBitrate  int    `json:"averageBitrate"`
	ContentLength   string `json:"contentLength"`
	AudioQuality    string `json:"audioQuality"`
}

func (f streamFormat) isAudioOnly() bool {
	return strings.HasPrefix(f.MimeType, "audio/")
}

// formats returns every stream in the player response, or an error carrying
// the playability reason when there are none.
func (r innertubePlayerResp) formats() ([]streamFormat, error) {
	if r.StreamingData == nil {
		if r.PlayabilityStatus != nil && r.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("not playable: %s", r.PlayabilityStatus.Reason)
		}
		return nil, fmt.Errorf("no streamingData in player response")
	}
	all := append([]streamFormat{}, r.StreamingData.AdaptiveFormats...)
	return append(all, r.StreamingData.Formats...), nil
}

// fetchPlayerANDROID calls the ANDROID Innertube /player endpoint.
func (y *YouTube) fetchPlayerANDROID(ctx context.Context, videoID string) (innertubePlayerResp, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return innertubePlayerResp{}, err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.playerURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return y.http.Do(req)
	})
	if err != nil {
		return innertubePlayerResp{}, fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return innertubePlayerResp{}, fmt.Errorf("android innertube: HTTP %d: %s", resp.StatusCode, snippet)
	}

	var playerResp innertubePlayerResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 3*1024*1024)).Decode(&playerResp); err != nil {
		return innertubePlayerResp{}, fmt.Errorf("decode player: %w", err)
	}
	return playerResp, nil
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchWatchPage loads the watch page HTML, through the browser TLS client when configured.
func (y *YouTube) fetchWatchPage(ctx context.Context, videoID string) ([]byte, error) {
	watchURL := y.watchURL + videoID
	headers := map[string]string{
		"User-Agent":      engine.RandomUserAgent(),
		"Accept-Language": "en-US,en;q=0.9",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}

	if y.browser != nil {
		data, _, status, err := y.browser.Do(http.MethodGet, watchURL, headers, nil)
		if err != nil {
			return nil, fmt.Errorf("watch page: %w", err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("watch page: HTTP %d", status)
		}
		return data, nil
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return y.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
}

// playerResponseFromHTML walks the page's <script> elements and returns the
// ytInitialPlayerResponse JSON object, or nil if no script carries it.
func playerResponseFromHTML(page []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(page))
	marker := []byte(ytInitialPlayerResponseMarker)
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			text := z.Text()
			idx := bytes.Index(text, marker)
			if idx < 0 {
				continue
			}
			if obj := extractJSON(text[idx+len(marker):]); obj != nil {
				return append([]byte(nil), obj...)
			}
		}
	}
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking
// brace depth outside string literals.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[:i+1]
				}
			}
		}
	}
	return nil
}
