// SPDX-License-Identifier: MIT

package immich

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/theothernt/AerialViews-sub000/internal/media"
)

// mapAssets converts assets to items. Unsupported files and kinds filtered
// out by the media type are counted as excluded.
func (s *Source) mapAssets(base, key string, assets []asset) ([]media.Item, int) {
	items := make([]media.Item, 0, len(assets))
	excluded := 0
	for _, a := range assets {
		name := a.OriginalPath
		if name == "" {
			name = a.OriginalName
		}
		kind, ok := s.cfg.MediaType.Classify(name)
		if !ok {
			excluded++
			continue
		}
		items = append(items, media.Item{
			URI:      s.assetURI(base, key, a.ID, kind == media.KindVideo),
			Kind:     kind,
			Metadata: metadataOf(a),
		})
	}
	return items, excluded
}

// assetURI builds the playback locator of an asset. Shared link locators
// carry the key and password so players can fetch them directly.
func (s *Source) assetURI(base, key, id string, video bool) string {
	p := "/api/assets/" + url.PathEscape(id)
	q := url.Values{}
	switch {
	case video && s.cfg.VideoType == VideoTranscoded:
		p += "/video/playback"
	case video, s.cfg.ImageType == ImageOriginal:
		p += "/original"
	default:
		p += "/thumbnail"
		size := "preview"
		if s.cfg.ImageType == ImageFullsize {
			size = "fullsize"
		}
		q.Set("size", size)
	}
	if s.cfg.Auth == AuthSharedLink {
		q.Set("key", key)
		if s.cfg.Password != "" {
			q.Set("password", s.cfg.Password)
		}
	}
	if len(q) == 0 {
		return base + p
	}
	return base + p + "?" + q.Encode()
}

var zoneSuffix = regexp.MustCompile(`(?i)(?:z|[+-]\d{2}:?\d{2})$`)

func metadataOf(a asset) media.Metadata {
	var m media.Metadata
	exif := a.ExifInfo
	if exif == nil {
		exif = &exifInfo{}
	}

	switch {
	case a.Description != nil && *a.Description != "":
		m.Description = *a.Description
	default:
		m.Description = exif.Description
	}
	m.Exif = media.Exif{
		Date:    zoneSuffix.ReplaceAllString(strings.TrimSpace(a.LocalDateTime), ""),
		Country: exif.Country,
		State:   exif.State,
		City:    exif.City,
		Camera:  strings.TrimSpace(exif.Make + " " + exif.Model),
	}

	var poi []string
	if loc := location(exif); loc != "" {
		poi = append(poi, loc)
	}
	if m.Description != "" {
		poi = append(poi, m.Description)
	}
	if len(poi) > 0 {
		m.POI = make(map[int]string, len(poi))
		for i, v := range poi {
			m.POI[i] = v
		}
	}
	return m
}

func location(e *exifInfo) string {
	var parts []string
	for _, p := range []string{e.Country, e.State, e.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
