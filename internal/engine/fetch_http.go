package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrDownloadTooLarge is returned when a body exceeds the configured byte cap.
var ErrDownloadTooLarge = errors.New("download exceeds size limit")

// NewFetchClient creates an HTTP client for media downloads. No overall
// timeout: callers bound each download with a context deadline instead.
func NewFetchClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// fetchWithRetry performs an HTTP GET with retry logic using exponential backoff.
// Only retryable statuses are retried; transport errors and other statuses are permanent.
func fetchWithRetry(ctx context.Context, client *http.Client, fetchURL string, headers map[string]string) (*http.Response, error) {
	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", RandomUserAgent())
		req.Header.Set("Accept", "audio/*,video/*,application/octet-stream;q=0.9,*/*;q=0.8")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3), backoff.WithMaxElapsedTime(30*time.Second))
}

// DownloadToFile streams fetchURL into dst, creating or truncating it.
// maxBytes <= 0 disables the size cap. Returns the number of bytes written.
func DownloadToFile(ctx context.Context, client *http.Client, fetchURL, dst string, maxBytes int64, headers map[string]string) (int64, error) {
	metrics.Downloads.Add(1)
	n, err := downloadToFile(ctx, client, fetchURL, dst, maxBytes, headers)
	if err != nil {
		metrics.DownloadErrors.Add(1)
	}
	return n, err
}

func downloadToFile(ctx context.Context, client *http.Client, fetchURL, dst string, maxBytes int64, headers map[string]string) (int64, error) {
	if client == nil {
		client = NewFetchClient()
	}
	resp, err := fetchWithRetry(ctx, client, fetchURL, headers)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return 0, fmt.Errorf("%w: content-length %d", ErrDownloadTooLarge, resp.ContentLength)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		return n, fmt.Errorf("write body: %w", copyErr)
	case closeErr != nil:
		return n, fmt.Errorf("close %s: %w", dst, closeErr)
	case maxBytes > 0 && n > maxBytes:
		return n, ErrDownloadTooLarge
	}
	return n, nil
}
