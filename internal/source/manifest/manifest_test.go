// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

const tvosManifest = `{
  "assets": [
    {
      "accessibilityLabel": "Dubai",
      "pointsOfInterest": {"0": "DB_A"},
      "timeOfDay": "night",
      "scene": "city",
      "url-1080-SDR": "https://sylvan.apple.com/Videos/DB_D011_C010_sdr.mov",
      "url-4K-SDR": "https://sylvan.apple.com/Videos/DB_D011_C010_4k.mov"
    },
    {
      "accessibilityLabel": "Iceland",
      "timeOfDay": "day",
      "scene": "nature",
      "url-1080-SDR": "https://sylvan.apple.com/Videos/IC_A001_sdr.mov"
    }
  ]
}`

func newManifestServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/tvos.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(tvosManifest))
	})
	mux.HandleFunc("/strings.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"DB_A": "Burj Khalifa"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSourceFetch(t *testing.T) {
	srv, hits := newManifestServer(t)
	fetcher := NewFetcher("manifest", srv.Client(), nil, nil, 0, zerolog.Nop())
	src := New(Config{
		Enabled:    true,
		URLs:       []string{srv.URL + "/tvos.json"},
		StringsURL: srv.URL + "/strings.json",
		Quality:    Quality4KSDR,
	}, fetcher, zerolog.Nop())

	assert.Equal(t, media.Remote, src.Type())
	require.NoError(t, src.Prepare(context.Background()))

	items, err := src.FetchMedia(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://sylvan.apple.com/Videos/DB_D011_C010_4k.mov", items[0].URI)
	assert.Equal(t, "https://sylvan.apple.com/Videos/IC_A001_sdr.mov", items[1].URI)

	meta, err := src.FetchMetadata(context.Background())
	require.NoError(t, err)
	e, ok := meta.Lookup("/mnt/usb/db_d011_c010_sdr.MOV")
	require.True(t, ok)
	assert.Equal(t, "Dubai", e.Description)
	assert.Equal(t, "Burj Khalifa", e.POI[0])
	assert.Equal(t, media.Night, e.TimeOfDay)

	// Media and metadata of one run share a single download.
	assert.Equal(t, int64(1), hits.Load())

	require.NoError(t, src.Prepare(context.Background()))
	_, err = src.FetchMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestSourceFilter(t *testing.T) {
	srv, _ := newManifestServer(t)
	fetcher := NewFetcher("manifest", srv.Client(), nil, nil, 0, zerolog.Nop())
	src := New(Config{
		URLs:   []string{srv.URL + "/tvos.json"},
		Filter: Filter{Scenes: []string{"nature"}},
	}, fetcher, zerolog.Nop())
	require.NoError(t, src.Prepare(context.Background()))

	items, err := src.FetchMedia(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].URI, "IC_A001")
}

func TestSourceFailures(t *testing.T) {
	srv, _ := newManifestServer(t)
	fetcher := NewFetcher("manifest", srv.Client(), nil, nil, 0, zerolog.Nop())

	t.Run("not configured", func(t *testing.T) {
		err := New(Config{}, fetcher, zerolog.Nop()).Prepare(context.Background())
		assert.ErrorIs(t, err, source.ErrNotConfigured)
	})

	t.Run("every manifest missing", func(t *testing.T) {
		src := New(Config{URLs: []string{srv.URL + "/missing.json"}}, fetcher, zerolog.Nop())
		require.NoError(t, src.Prepare(context.Background()))
		_, err := src.FetchMedia(context.Background())
		assert.ErrorIs(t, err, ErrStatus)
	})

	t.Run("one manifest missing", func(t *testing.T) {
		src := New(Config{URLs: []string{srv.URL + "/missing.json", srv.URL + "/tvos.json"}}, fetcher, zerolog.Nop())
		require.NoError(t, src.Prepare(context.Background()))
		items, err := src.FetchMedia(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("strings missing falls back to raw keys", func(t *testing.T) {
		src := New(Config{URLs: []string{srv.URL + "/tvos.json"}, StringsURL: srv.URL + "/nope.json"}, fetcher, zerolog.Nop())
		require.NoError(t, src.Prepare(context.Background()))
		meta, err := src.FetchMetadata(context.Background())
		require.NoError(t, err)
		e, ok := meta["db_d011_c010_sdr"]
		require.True(t, ok)
		assert.Equal(t, "DB_A", e.POI[0])
	})
}
