// SPDX-License-Identifier: MIT

// Package source holds what the concrete media sources share: the media type
// filter and the error returned by a source that is switched off.
package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theothernt/AerialViews-sub000/internal/media"
)

// ErrNotConfigured is returned by Prepare when a source lacks a required
// setting such as its URL.
var ErrNotConfigured = errors.New("source not configured")

// MediaType selects which kinds of files a source lists.
type MediaType string

const (
	MediaVideos MediaType = "videos"
	MediaPhotos MediaType = "photos"
	MediaBoth   MediaType = "both"
)

// ParseMediaType accepts videos, photos or both. Empty means videos.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case "", MediaVideos:
		return MediaVideos, nil
	case MediaPhotos:
		return MediaPhotos, nil
	case MediaBoth:
		return MediaBoth, nil
	default:
		return "", fmt.Errorf("invalid media type %q (want videos, photos or both)", s)
	}
}

// Accepts reports whether items of kind k pass the filter.
func (m MediaType) Accepts(k media.Kind) bool {
	switch m {
	case MediaPhotos:
		return k == media.KindImage
	case MediaBoth:
		return true
	default:
		return k == media.KindVideo
	}
}

// Classify returns the kind of the file name when it is a supported media
// file that passes the filter.
func (m MediaType) Classify(name string) (media.Kind, bool) {
	k, ok := media.KindOf(name)
	if !ok || !m.Accepts(k) {
		return 0, false
	}
	return k, true
}

// NameOr returns name, or fallback when name is blank.
func NameOr(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}
