// SPDX-License-Identifier: MIT

package stream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theothernt/AerialViews-sub000/internal/platform/httpx"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs/davtest"
)

func newDAVSession(opts Options) *Session {
	return NewWebDAVSession(httpx.NewStreamingClient(2*time.Second), opts)
}

func TestWebDAVRoundTrip(t *testing.T) {
	srv := davtest.New(t, "alice", "pw")
	data := payload(200_000)
	srv.Put(t, "/videos/clip.mp4", data)

	s := newDAVSession(Options{})
	length, err := s.Open(context.Background(), srv.URL("/videos/clip.mp4"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), length)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NotContains(t, s.URI(), ":pw@")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestWebDAVRangedOpen(t *testing.T) {
	srv := davtest.New(t, "", "")
	data := payload(5000)
	srv.Put(t, "/clip.mp4", data)

	s := newDAVSession(Options{})
	defer s.Close()

	length, err := s.Open(context.Background(), srv.URL("/clip.mp4"), 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), length)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data[4000:], got)
}

func TestWebDAVOpenAtEnd(t *testing.T) {
	srv := davtest.New(t, "", "")
	srv.Put(t, "/clip.mp4", payload(10))

	s := newDAVSession(Options{})
	defer s.Close()

	length, err := s.Open(context.Background(), srv.URL("/clip.mp4"), 10)
	require.NoError(t, err)
	assert.Zero(t, length)
	_, err = s.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.EOF)
}

func TestWebDAVCredentialsFromOptions(t *testing.T) {
	srv := davtest.New(t, "alice", "pw")
	srv.Put(t, "/clip.mp4", payload(10))

	plain := srv.Server.URL + "/clip.mp4"
	s := newDAVSession(Options{WebDAVUser: "alice", WebDAVPassword: "pw"})
	defer s.Close()

	length, err := s.Open(context.Background(), plain, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), length)
}

func TestWebDAVOpenFailures(t *testing.T) {
	srv := davtest.New(t, "alice", "pw")
	srv.Put(t, "/videos/clip.mp4", payload(10))

	t.Run("path not found", func(t *testing.T) {
		s := newDAVSession(Options{})
		_, err := s.Open(context.Background(), srv.URL("/videos/missing.mp4"), 0)
		assert.ErrorIs(t, err, remotefs.ErrPathNotFound)
		assert.NoError(t, s.Close())
	})
	t.Run("directory", func(t *testing.T) {
		s := newDAVSession(Options{})
		_, err := s.Open(context.Background(), srv.URL("/videos"), 0)
		assert.ErrorIs(t, err, remotefs.ErrPathNotFound)
	})
	t.Run("auth rejected", func(t *testing.T) {
		s := newDAVSession(Options{})
		bad := srv.Server.URL + "/videos/clip.mp4"
		bad = "http://alice:nope@" + bad[len("http://"):]
		_, err := s.Open(context.Background(), bad, 0)
		assert.ErrorIs(t, err, remotefs.ErrAuthRejected)
	})
	t.Run("host unreachable", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL + "/clip.mp4"
		dead.Close()

		s := newDAVSession(Options{})
		_, err := s.Open(context.Background(), url, 0)
		assert.ErrorIs(t, err, remotefs.ErrHostUnreachable)
		assert.NoError(t, s.Close())
	})
}

// plainServer serves files over plain HTTP and rejects WebDAV methods.
func plainServer(t *testing.T, data []byte, headLength bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			if !headLength {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			http.ServeContent(w, r, "clip.mp4", time.Time{}, bytes.NewReader(data))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPlainHTTPUsesHeadProbe(t *testing.T) {
	data := payload(3000)
	srv := plainServer(t, data, true)

	s := newDAVSession(Options{})
	defer s.Close()

	length, err := s.Open(context.Background(), srv.URL+"/clip.mp4", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), length)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data[1000:], got)
}

func TestPlainHTTPLengthFallback(t *testing.T) {
	data := payload(3000)
	srv := plainServer(t, data, false)

	t.Run("unknown streams to EOF", func(t *testing.T) {
		s := newDAVSession(Options{Fallback: FallbackUnknown})
		defer s.Close()
		length, err := s.Open(context.Background(), srv.URL+"/clip.mp4", 0)
		require.NoError(t, err)
		assert.Equal(t, LengthUnknown, length)
		got, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
	t.Run("zero", func(t *testing.T) {
		s := newDAVSession(Options{Fallback: FallbackZero})
		defer s.Close()
		length, err := s.Open(context.Background(), srv.URL+"/clip.mp4", 0)
		require.NoError(t, err)
		assert.Zero(t, length)
	})
	t.Run("error", func(t *testing.T) {
		s := newDAVSession(Options{Fallback: FallbackError})
		_, err := s.Open(context.Background(), srv.URL+"/clip.mp4", 0)
		assert.ErrorIs(t, err, remotefs.ErrLengthUnavailable)
		assert.NoError(t, s.Close())
	})
}

// wholeFileServer answers every GET with the full body and status 200,
// ignoring Range, and reports no length anywhere.
func wholeFileServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUnknownLengthOffset(t *testing.T) {
	data := payload(3000)

	tests := []struct {
		name   string
		srv    *httptest.Server
		offset int64
		want   []byte
	}{
		{"range honoured", plainServer(t, data, false), 1000, data[1000:]},
		{"range ignored", wholeFileServer(t, data), 1000, data[1000:]},
		{"range ignored past end", wholeFileServer(t, data), 5000, []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newDAVSession(Options{Fallback: FallbackUnknown})
			defer s.Close()

			length, err := s.Open(context.Background(), tt.srv.URL+"/clip.mp4", tt.offset)
			require.NoError(t, err)
			assert.Equal(t, LengthUnknown, length)

			got, err := io.ReadAll(s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebDAVOpenHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	s := NewWebDAVSession(httpx.NewStreamingClient(time.Minute), Options{})
	start := time.Now()
	_, err := s.Open(ctx, srv.URL+"/clip.mp4", 0)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "open must stop when ctx expires")
	assert.NoError(t, s.Close())
}

func TestFactorySelectsBackend(t *testing.T) {
	f := NewFactory(nil, nil, Options{})
	for uri, want := range map[string]string{
		"smb://nas/share/a.mp4":   "smb",
		"https://dav/a.mp4":       "webdav",
		"davs://dav/a.mp4":        "webdav",
		"HTTP://example.com/a.ts": "webdav",
	} {
		s, err := f.NewSession(uri)
		require.NoError(t, err, uri)
		assert.Equal(t, want, s.Backend(), uri)
	}

	_, err := f.NewSession("ftp://host/a.mp4")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.False(t, Supports("file:///a.mp4"))
	assert.True(t, Supports("smb://nas/s/a.mp4"))
}
