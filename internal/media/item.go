// SPDX-License-Identifier: MIT

// Package media defines the items, metadata and source contract shared by
// the aggregation pipeline and the streaming layer.
package media

import "strings"

// Kind distinguishes videos from still images.
type Kind int

const (
	KindVideo Kind = iota
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// TimeOfDay is the period a clip was filmed in.
type TimeOfDay int

const (
	Unknown TimeOfDay = iota
	Day
	Night
	Sunrise
	Sunset
)

func (t TimeOfDay) String() string {
	switch t {
	case Day:
		return "DAY"
	case Night:
		return "NIGHT"
	case Sunrise:
		return "SUNRISE"
	case Sunset:
		return "SUNSET"
	default:
		return "UNKNOWN"
	}
}

// ParseTimeOfDay is case-insensitive; anything unrecognised is Unknown.
func ParseTimeOfDay(s string) TimeOfDay {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAY":
		return Day
	case "NIGHT":
		return Night
	case "SUNRISE":
		return Sunrise
	case "SUNSET":
		return Sunset
	default:
		return Unknown
	}
}

// Exif holds the photo fields some sources supply inline.
type Exif struct {
	Date    string `json:"date,omitempty"`
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
	Camera  string `json:"camera,omitempty"`
}

// Metadata is the descriptive data attached to an item.
type Metadata struct {
	Description string         `json:"description,omitempty"`
	POI         map[int]string `json:"poi,omitempty"`
	TimeOfDay   TimeOfDay      `json:"-"`
	Exif        Exif           `json:"exif,omitempty"`
}

// Item is one playable video or image.
type Item struct {
	URI       string   `json:"uri"`
	Kind      Kind     `json:"-"`
	SourceTag string   `json:"source"`
	Metadata  Metadata `json:"metadata"`
	Matched   bool     `json:"matched"`
}

// ManifestEntry is curated metadata for one clip.
type ManifestEntry struct {
	Description string
	POI         map[int]string
	TimeOfDay   TimeOfDay
}

// Manifest maps a lower-cased filename without extension to its entry.
type Manifest map[string]ManifestEntry

// Merge copies other into m. Entries in other replace existing keys.
func (m Manifest) Merge(other Manifest) {
	for k, v := range other {
		m[k] = v
	}
}

// Add stores entry under the key derived from uri.
func (m Manifest) Add(uri string, entry ManifestEntry) {
	key := MatchKey(uri)
	if key == "" {
		return
	}
	m[key] = entry
}

// Lookup finds the entry for uri.
func (m Manifest) Lookup(uri string) (ManifestEntry, bool) {
	e, ok := m[MatchKey(uri)]
	return e, ok
}

// CopyPOI returns an independent copy of a points-of-interest map.
func CopyPOI(in map[int]string) map[int]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
