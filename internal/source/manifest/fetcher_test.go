// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theothernt/AerialViews-sub000/internal/cache"
	"github.com/theothernt/AerialViews-sub000/internal/resilience"
)

type flakyServer struct {
	*httptest.Server
	hits atomic.Int64
	fail atomic.Bool
}

func newFlakyServer(t *testing.T, body string) *flakyServer {
	s := &flakyServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func newMemCache(t *testing.T) *cache.MemoryCache {
	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFetcherServesFreshFromCache(t *testing.T) {
	srv := newFlakyServer(t, `{"assets":[]}`)
	f := NewFetcher("manifest", srv.Client(), newMemCache(t), nil, time.Hour, zerolog.Nop())

	for i := 0; i < 3; i++ {
		body, err := f.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.JSONEq(t, `{"assets":[]}`, string(body))
	}
	assert.Equal(t, int64(1), srv.hits.Load())
}

func TestFetcherFallsBackToStaleCopy(t *testing.T) {
	srv := newFlakyServer(t, `{"assets":[{"url-1080-SDR":"https://cdn/a.mov"}]}`)
	c := newMemCache(t)
	f := NewFetcher("manifest", srv.Client(), c, nil, time.Hour, zerolog.Nop())

	var doc Document
	require.NoError(t, f.GetJSON(context.Background(), srv.URL, &doc))

	c.Delete(context.Background(), freshKey(srv.URL))
	srv.fail.Store(true)

	doc = Document{}
	require.NoError(t, f.GetJSON(context.Background(), srv.URL, &doc))
	require.Len(t, doc.Assets, 1)
	assert.Equal(t, int64(2), srv.hits.Load())
}

func TestFetcherWithoutCacheReportsStatus(t *testing.T) {
	srv := newFlakyServer(t, `{}`)
	srv.fail.Store(true)
	f := NewFetcher("manifest", srv.Client(), nil, nil, 0, zerolog.Nop())

	_, err := f.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestFetcherBreakerStopsHammering(t *testing.T) {
	srv := newFlakyServer(t, `{}`)
	srv.fail.Store(true)
	breaker := resilience.NewCircuitBreaker("manifest-test", 2, time.Minute)
	f := NewFetcher("manifest", srv.Client(), nil, breaker, 0, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := f.Get(context.Background(), srv.URL)
		require.Error(t, err)
	}
	assert.Equal(t, int64(2), srv.hits.Load())
	assert.Equal(t, resilience.StateOpen, breaker.State())

	_, err := f.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestFetcherRejectsBadJSON(t *testing.T) {
	srv := newFlakyServer(t, `not json`)
	f := NewFetcher("manifest", srv.Client(), nil, nil, 0, zerolog.Nop())

	var doc Document
	assert.Error(t, f.GetJSON(context.Background(), srv.URL, &doc))
}
