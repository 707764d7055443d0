// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/playlist"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/stream"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code      string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

var (
	errNotReady = APIError{Code: "playlist_not_ready", Detail: "the first aggregation has not finished"}
	errEmpty    = APIError{Code: "playlist_empty", Detail: "the playlist has no items"}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, e APIError) {
	e.RequestID = xglog.RequestIDFromContext(r.Context())
	writeJSON(w, status, e)
}

// streamStatus maps a session open failure to a response status.
func streamStatus(err error) (int, APIError) {
	switch {
	case errors.Is(err, stream.ErrUnsupportedScheme), errors.Is(err, stream.ErrInvalidLocator):
		return http.StatusNotImplemented, APIError{Code: "unsupported_locator", Detail: err.Error()}
	case errors.Is(err, playlist.ErrEmpty):
		return http.StatusNotFound, errEmpty
	}

	cause := remotefs.CauseOf(err)
	e := APIError{Code: string(cause)}
	switch cause {
	case remotefs.CausePathNotFound, remotefs.CauseShareNotFound:
		return http.StatusNotFound, e
	case remotefs.CauseAuthRejected:
		return http.StatusBadGateway, e
	case remotefs.CauseHostUnreachable:
		return http.StatusGatewayTimeout, e
	case remotefs.CauseLengthUnavailable:
		return http.StatusBadGateway, e
	default:
		return http.StatusBadGateway, APIError{Code: "upstream_error"}
	}
}
