// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/stream"
)

// byteRange is a parsed single "bytes=" range. end is inclusive, -1 when open.
type byteRange struct {
	start, end int64
}

// parseRange understands "bytes=N-" and "bytes=N-M". Anything else, including
// suffix and multi ranges, is ignored and the whole file is served.
func parseRange(h string) (byteRange, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(h), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return byteRange{}, false
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok || first == "" {
		return byteRange{}, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, false
	}
	br := byteRange{start: start, end: -1}
	if last = strings.TrimSpace(last); last != "" {
		end, err := strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return byteRange{}, false
		}
		br.end = end
	}
	return br, true
}

// videoTypes covers containers the platform mime table may not know.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".ts":   "video/mp2t",
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	pl := s.current(w, r)
	if pl == nil {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	items := pl.Items()
	if err != nil || idx < 0 || idx >= len(items) {
		writeError(w, r, http.StatusNotFound, APIError{Code: "item_not_found"})
		return
	}
	it := items[idx]

	if u, err := url.Parse(it.URI); err == nil && u.Scheme == "file" {
		s.serveLocal(w, r, it, u.Path)
		return
	}
	s.serveRemote(w, r, it)
}

// serveLocal lets net/http handle ranges and conditional requests.
func (s *Server) serveLocal(w http.ResponseWriter, r *http.Request, it media.Item, path string) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		writeError(w, r, http.StatusNotFound, APIError{Code: "path_not_found"})
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, r, http.StatusNotFound, APIError{Code: "path_not_found"})
		return
	}
	http.ServeContent(w, r, media.FilenameOf(it.URI), info.ModTime(), f)
}

func (s *Server) serveRemote(w http.ResponseWriter, r *http.Request, it media.Item) {
	if s.streams == nil || !stream.Supports(it.URI) {
		writeError(w, r, http.StatusNotImplemented, APIError{Code: "unsupported_locator"})
		return
	}

	br, ranged := parseRange(r.Header.Get("Range"))
	sess, err := s.streams.NewSession(it.URI)
	if err != nil {
		status, e := streamStatus(err)
		writeError(w, r, status, e)
		return
	}
	defer func() { _ = sess.Close() }()

	remaining, err := sess.Open(r.Context(), it.URI, br.start)
	if err != nil {
		status, e := streamStatus(err)
		writeError(w, r, status, e)
		return
	}

	logger := xglog.WithContext(r.Context(), s.logger)
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(media.FilenameOf(it.URI)))

	var body io.Reader = sess
	status := http.StatusOK
	switch {
	case remaining == stream.LengthUnknown:
		// The complete length is unknown, so it is sent as "*". An open
		// ended range also has no known last byte.
		if ranged && br.start > 0 {
			status = http.StatusPartialContent
			last := "*"
			if br.end >= 0 {
				last = strconv.FormatInt(br.end, 10)
			}
			h.Set("Content-Range", fmt.Sprintf("bytes %d-%s/*", br.start, last))
		}
		if ranged && br.end >= 0 {
			body = io.LimitReader(sess, br.end-br.start+1)
		}
	case ranged && remaining == 0:
		// Open clamps offsets past the end to zero remaining bytes.
		writeError(w, r, http.StatusRequestedRangeNotSatisfiable, APIError{Code: "range_not_satisfiable"})
		return
	case ranged:
		total := br.start + remaining
		n := remaining
		if br.end >= 0 && br.end-br.start+1 < n {
			n = br.end - br.start + 1
		}
		body = io.LimitReader(sess, n)
		status = http.StatusPartialContent
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, br.start+n-1, total))
		h.Set("Content-Length", strconv.FormatInt(n, 10))
	default:
		h.Set("Content-Length", strconv.FormatInt(remaining, 10))
	}

	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	written, err := io.Copy(w, body)
	if err != nil && !errors.Is(err, r.Context().Err()) {
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "stream.copy_failed").
			Str(xglog.FieldURI, sess.URI()).
			Int64("written", written).
			Msg("stream ended with an error")
		return
	}
	logger.Debug().
		Str(xglog.FieldEvent, "stream.served").
		Str(xglog.FieldURI, sess.URI()).
		Str(xglog.FieldBackend, sess.Backend()).
		Int64(xglog.FieldOffset, br.start).
		Int64("written", written).
		Msg("stream served")
}
