// SPDX-License-Identifier: MIT

package immich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

var (
	beach = asset{
		ID:            "a1",
		OriginalPath:  "/upload/library/2024/beach.jpg",
		LocalDateTime: "2024-07-01T10:00:00.000Z",
		ExifInfo:      &exifInfo{Description: "Sunny day", Country: "Portugal", City: "Lagos", Make: "FUJIFILM", Model: "X-T5"},
	}
	drone = asset{ID: "a2", OriginalPath: "/upload/library/2024/drone.mp4"}
	doc   = asset{ID: "a3", OriginalPath: "/upload/library/2024/notes.pdf"}
)

type fakeImmich struct {
	*httptest.Server
	requests atomic.Int64
	lastKey  atomic.Value
}

func newFakeImmich(t *testing.T) *fakeImmich {
	f := &fakeImmich{}
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/shared-links/me", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("key") == "indiv":
			writeJSON(w, sharedLink{ID: "l1", Key: "indiv", Type: "INDIVIDUAL", ShowMetadata: true, Assets: []asset{beach, drone, doc, beach}})
		case q.Get("slug") == "holiday" && q.Get("password") == "pw":
			writeJSON(w, sharedLink{ID: "l2", Key: "resolved", Type: "ALBUM", ShowMetadata: true, Album: &album{ID: "alb1"}})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, errorResponse{Message: "Invalid share key", StatusCode: 401})
		}
	})
	mux.HandleFunc("GET /api/albums/{id}", func(w http.ResponseWriter, r *http.Request) {
		if k := r.URL.Query().Get("key"); k != "" {
			f.lastKey.Store(k)
		} else if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.PathValue("id") {
		case "alb1":
			writeJSON(w, album{ID: "alb1", Name: "Holiday", Assets: []asset{beach}})
		case "alb2":
			writeJSON(w, album{ID: "alb2", Name: "Drone", Assets: []asset{drone, beach}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("POST /api/search/metadata", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		var resp searchResponse
		if req.Page <= 1 {
			next := "2"
			resp.Assets.Items = []asset{beach}
			resp.Assets.NextPage = &next
		} else {
			resp.Assets.Items = []asset{{ID: "a4", OriginalPath: "fav.heic"}}
		}
		writeJSON(w, resp)
	})
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func fetch(t *testing.T, cfg Config, srv *fakeImmich) ([]media.Item, error) {
	t.Helper()
	cfg.URL = srv.URL
	src := New(cfg, srv.Client(), zerolog.Nop())
	require.NoError(t, src.Prepare(context.Background()))
	return src.FetchMedia(context.Background())
}

func TestSharedLinkIndividual(t *testing.T) {
	srv := newFakeImmich(t)
	items, err := fetch(t, Config{SharedLink: "/share/indiv", MediaType: source.MediaBoth}, srv)
	require.NoError(t, err)

	// Duplicate asset ids collapse and unsupported files are dropped.
	require.Len(t, items, 2)
	assert.Equal(t, srv.URL+"/api/assets/a1/thumbnail?key=indiv&size=fullsize", items[0].URI)
	assert.Equal(t, media.KindImage, items[0].Kind)
	assert.Equal(t, srv.URL+"/api/assets/a2/original?key=indiv", items[1].URI)
	assert.Equal(t, media.KindVideo, items[1].Kind)

	want := media.Metadata{
		Description: "Sunny day",
		POI:         map[int]string{0: "Portugal, Lagos", 1: "Sunny day"},
		Exif: media.Exif{
			Date:    "2024-07-01T10:00:00.000",
			Country: "Portugal",
			City:    "Lagos",
			Camera:  "FUJIFILM X-T5",
		},
	}
	if diff := cmp.Diff(want, items[0].Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestSharedLinkAlbumBySlug(t *testing.T) {
	srv := newFakeImmich(t)
	items, err := fetch(t, Config{
		SharedLink: srv.URL + "/s/holiday",
		Password:   "pw",
		MediaType:  source.MediaPhotos,
		ImageType:  ImageOriginal,
	}, srv)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, srv.URL+"/api/assets/a1/original?key=resolved&password=pw", items[0].URI)
	assert.Equal(t, "resolved", srv.lastKey.Load())
}

func TestAPIKeyAlbumsAndFavorites(t *testing.T) {
	srv := newFakeImmich(t)
	items, err := fetch(t, Config{
		Auth:      AuthAPIKey,
		APIKey:    "secret",
		Albums:    []string{"alb2", "missing"},
		Favorites: true,
		MediaType: source.MediaBoth,
		VideoType: VideoTranscoded,
		ImageType: ImagePreview,
	}, srv)
	require.NoError(t, err)

	var got []string
	for _, it := range items {
		got = append(got, it.URI)
	}
	assert.Equal(t, []string{
		srv.URL + "/api/assets/a2/video/playback",
		srv.URL + "/api/assets/a1/thumbnail?size=preview",
		srv.URL + "/api/assets/a4/thumbnail?size=preview",
	}, got)
}

func TestErrors(t *testing.T) {
	srv := newFakeImmich(t)

	_, err := fetch(t, Config{SharedLink: "wrong"}, srv)
	require.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, remotefs.CauseAuthRejected, remotefs.CauseOf(err))
	assert.NotContains(t, err.Error(), "wrong")

	_, err = fetch(t, Config{Auth: AuthAPIKey, APIKey: "bad", Albums: []string{"alb1"}}, srv)
	assert.ErrorIs(t, err, ErrAPI)
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no url", Config{SharedLink: "k"}},
		{"no shared link", Config{URL: "http://immich"}},
		{"no api key", Config{URL: "http://immich", Auth: AuthAPIKey, Favorites: true}},
		{"nothing selected", Config{URL: "http://immich", Auth: AuthAPIKey, APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.cfg, nil, zerolog.Nop()).Prepare(context.Background())
			assert.ErrorIs(t, err, source.ErrNotConfigured)
		})
	}

	err := New(Config{URL: "ftp://immich", SharedLink: "k"}, nil, zerolog.Nop()).Prepare(context.Background())
	assert.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	src := New(Config{}, nil, zerolog.Nop())
	assert.True(t, media.IdentityByURI(src))
	assert.True(t, media.CarriesMetadata(src))
	assert.Equal(t, media.Remote, src.Type())
}

func TestCleanSharedKey(t *testing.T) {
	assert.Equal(t, "abc", cleanSharedKey("/share/abc/"))
	assert.Equal(t, "abc", cleanSharedKey("abc"))
	assert.Equal(t, "trip", cleanSharedKey("https://photos.example/s/trip"))
	assert.True(t, isSlug("/s/trip"))
	assert.False(t, isSlug("/share/abc"))
}
