package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadToFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "GoVoice2Word/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "audio-bytes")
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "a.mp3")
	n, err := DownloadToFile(context.Background(), srv.Client(), srv.URL, dst, 0,
		map[string]string{"User-Agent": "GoVoice2Word/1.0"})
	require.NoError(t, err)
	assert.EqualValues(t, len("audio-bytes"), n)
	assert.EqualValues(t, 1, hits.Load())

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}

func TestDownloadToFileRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	_, err := DownloadToFile(context.Background(), srv.Client(), srv.URL, filepath.Join(t.TempDir(), "a.mp3"), 0, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestDownloadToFileDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := DownloadToFile(context.Background(), srv.Client(), srv.URL, filepath.Join(t.TempDir(), "a.mp3"), 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.EqualValues(t, 1, hits.Load())
}

func TestDownloadToFileSizeCap(t *testing.T) {
	body := strings.Repeat("x", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked" {
			// Flushing before writing forces chunked encoding (no Content-Length).
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	for _, path := range []string{"/sized", "/chunked"} {
		_, err := DownloadToFile(context.Background(), srv.Client(), srv.URL+path,
			filepath.Join(t.TempDir(), "a.mp3"), 10, nil)
		assert.True(t, errors.Is(err, ErrDownloadTooLarge), "%s: %v", path, err)
	}
}

func TestDownloadToFileDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := DownloadToFile(ctx, srv.Client(), srv.URL, filepath.Join(t.TempDir(), "a.mp3"), 0, nil)
	require.Error(t, err)
	assert.True(t, IsDeadline(err), "%v", err)
}
