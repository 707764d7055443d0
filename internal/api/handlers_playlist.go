// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/playlist"
)

// ItemView is the public shape of a playlist item. Locators are redacted;
// clients play through StreamPath.
type ItemView struct {
	Index       int            `json:"index"`
	URI         string         `json:"uri"`
	Kind        string         `json:"kind"`
	Source      string         `json:"source"`
	Matched     bool           `json:"matched"`
	Description string         `json:"description,omitempty"`
	TimeOfDay   string         `json:"timeOfDay"`
	POI         map[int]string `json:"poi,omitempty"`
	Exif        *media.Exif    `json:"exif,omitempty"`
	StreamPath  string         `json:"streamPath"`
}

// PlaylistView is the body of GET /api/playlist.
type PlaylistView struct {
	Size        int        `json:"size"`
	Position    int        `json:"position"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Items       []ItemView `json:"items"`
}

func newItemView(i int, it media.Item) ItemView {
	v := ItemView{
		Index:       i,
		URI:         xglog.RedactURI(it.URI),
		Kind:        it.Kind.String(),
		Source:      it.SourceTag,
		Matched:     it.Matched,
		Description: it.Metadata.Description,
		TimeOfDay:   it.Metadata.TimeOfDay.String(),
		POI:         it.Metadata.POI,
		StreamPath:  streamPath(i, it),
	}
	if it.Metadata.Exif != (media.Exif{}) {
		exif := it.Metadata.Exif
		v.Exif = &exif
	}
	return v
}

func streamPath(i int, it media.Item) string {
	p := "/api/items/" + strconv.Itoa(i) + "/stream"
	if name := media.FilenameOf(it.URI); name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

// current returns the live playlist, or writes 503 and returns nil.
func (s *Server) current(w http.ResponseWriter, r *http.Request) *playlist.Playlist {
	pl := s.playlists.Current()
	if pl == nil {
		writeError(w, r, http.StatusServiceUnavailable, errNotReady)
	}
	return pl
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	pl := s.current(w, r)
	if pl == nil {
		return
	}
	items := pl.Items()
	view := PlaylistView{
		Size:     len(items),
		Position: pl.Position(),
		Items:    make([]ItemView, 0, len(items)),
	}
	if _, finished, ok := s.playlists.LastReport(); ok {
		view.GeneratedAt = finished
	}
	for i, it := range items {
		view.Items = append(view.Items, newItemView(i, it))
	}
	writeJSON(w, http.StatusOK, view)
}

type cursorOp int

const (
	cursorNext cursorOp = iota
	cursorPrevious
	cursorPeek
)

func (s *Server) handleCursor(op cursorOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pl := s.current(w, r)
		if pl == nil {
			return
		}

		var (
			it  media.Item
			err error
			idx int
		)
		// The index of the returned item follows from the cursor move.
		switch op {
		case cursorNext:
			idx = pl.Position()
			it, err = pl.Next()
		case cursorPrevious:
			it, err = pl.Previous()
			idx = pl.Position()
		case cursorPeek:
			idx = pl.Position()
			it, err = pl.Peek()
		}
		if errors.Is(err, playlist.ErrEmpty) {
			writeError(w, r, http.StatusNotFound, errEmpty)
			return
		}
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, APIError{Code: "internal_error"})
			return
		}
		writeJSON(w, http.StatusOK, newItemView(idx, it))
	}
}

// handleM3U renders the playlist with every entry pointing back at the
// stream endpoint of this server.
func (s *Server) handleM3U(w http.ResponseWriter, r *http.Request) {
	pl := s.current(w, r)
	if pl == nil {
		return
	}
	base := baseURL(r)
	items := pl.Items()
	for i := range items {
		items[i].URI = base + streamPath(i, items[i])
	}

	var buf bytes.Buffer
	if err := playlist.WriteM3U(&buf, items); err != nil {
		writeError(w, r, http.StatusInternalServerError, APIError{Code: "internal_error"})
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", `inline; filename="aerialviews.m3u"`)
	_, _ = w.Write(buf.Bytes())
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, finished, ok := s.playlists.LastReport()
	if !ok {
		writeError(w, r, http.StatusServiceUnavailable, errNotReady)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"finishedAt": finished,
		"failed":     report.Failed(),
		"report":     report,
	})
}

// handleRefresh triggers an aggregation. With ?wait=true it runs (or joins)
// the aggregation and answers with its report.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		s.playlists.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
		return
	}
	pl, report := s.playlists.Refresh(r.Context())
	s.logger.Info().
		Str(xglog.FieldEvent, "api.refresh").
		Str(xglog.FieldRunID, report.RunID).
		Int(xglog.FieldCount, pl.Size()).
		Msg("refresh requested over API")
	writeJSON(w, http.StatusOK, map[string]any{
		"size":   pl.Size(),
		"report": report,
	})
}
