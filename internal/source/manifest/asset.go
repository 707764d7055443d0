// SPDX-License-Identifier: MIT

package manifest

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/theothernt/AerialViews-sub000/internal/media"
)

// Quality selects which URL variant of an asset is played.
type Quality string

const (
	Quality1080H264 Quality = "1080_H264"
	Quality1080SDR  Quality = "1080_SDR"
	Quality1080HDR  Quality = "1080_HDR"
	Quality4KSDR    Quality = "4K_SDR"
	Quality4KHDR    Quality = "4K_HDR"
)

// qualities is the fallback order when an asset lacks the requested variant.
var qualities = []Quality{Quality1080SDR, Quality1080H264, Quality1080HDR, Quality4KSDR, Quality4KHDR}

// ParseQuality is case-insensitive. Empty means 1080_SDR.
func ParseQuality(s string) (Quality, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Quality1080SDR, nil
	}
	for _, q := range qualities {
		if strings.EqualFold(string(q), s) {
			return q, nil
		}
	}
	return "", fmt.Errorf("invalid video quality %q", s)
}

// Scene is the kind of landscape an asset shows.
type Scene string

const (
	SceneUnknown Scene = "UNKNOWN"
	SceneNature  Scene = "NATURE"
	SceneBeach   Scene = "BEACH"
	SceneCity    Scene = "CITY"
	SceneSea     Scene = "SEA"
	SceneSpace   Scene = "SPACE"
)

// ParseScene is case-insensitive; anything unrecognised is SceneUnknown.
func ParseScene(s string) Scene {
	switch sc := Scene(strings.ToUpper(strings.TrimSpace(s))); sc {
	case SceneNature, SceneBeach, SceneCity, SceneSea, SceneSpace:
		return sc
	default:
		return SceneUnknown
	}
}

// Asset is one clip of an Apple or community manifest.
type Asset struct {
	ID                 string            `json:"id,omitempty"`
	AccessibilityLabel string            `json:"accessibilityLabel,omitempty"`
	PointsOfInterest   map[string]string `json:"pointsOfInterest,omitempty"`
	TimeOfDay          string            `json:"timeOfDay,omitempty"`
	Scene              string            `json:"scene,omitempty"`
	URL1080H264        string            `json:"url-1080-H264,omitempty"`
	URL1080SDR         string            `json:"url-1080-SDR,omitempty"`
	URL1080HDR         string            `json:"url-1080-HDR,omitempty"`
	URL4KSDR           string            `json:"url-4K-SDR,omitempty"`
	URL4KHDR           string            `json:"url-4K-HDR,omitempty"`
}

// Document is the top-level JSON of a manifest or entries.json file.
type Document struct {
	Assets []Asset `json:"assets"`
}

func (a Asset) urlFor(q Quality) string {
	switch q {
	case Quality1080H264:
		return a.URL1080H264
	case Quality1080SDR:
		return a.URL1080SDR
	case Quality1080HDR:
		return a.URL1080HDR
	case Quality4KSDR:
		return a.URL4KSDR
	case Quality4KHDR:
		return a.URL4KHDR
	}
	return ""
}

// URLAt returns the URL for q, or the first variant present in fallback
// order. It is empty when the asset has no URL at all.
func (a Asset) URLAt(q Quality) string {
	if u := a.urlFor(q); u != "" {
		return u
	}
	for _, fq := range qualities {
		if u := a.urlFor(fq); u != "" {
			return u
		}
	}
	return ""
}

// AllURLs returns every non-empty variant.
func (a Asset) AllURLs() []string {
	var out []string
	for _, q := range qualities {
		if u := a.urlFor(q); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Entry builds the manifest entry of a. POI values are looked up in
// strs; missing keys fall back to the accessibility label.
func (a Asset) Entry(strs map[string]string) media.ManifestEntry {
	e := media.ManifestEntry{
		Description: a.AccessibilityLabel,
		TimeOfDay:   media.ParseTimeOfDay(a.TimeOfDay),
	}
	if len(a.PointsOfInterest) > 0 {
		e.POI = make(map[int]string, len(a.PointsOfInterest))
		for k, v := range a.PointsOfInterest {
			sec, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			switch {
			case strs == nil:
				e.POI[sec] = v
			case strs[v] != "":
				e.POI[sec] = strs[v]
			default:
				e.POI[sec] = a.AccessibilityLabel
			}
		}
	}
	return e
}

// Filter keeps assets whose scene and time of day are selected. An empty
// selection allows everything.
type Filter struct {
	Scenes     []string `yaml:"scenes,omitempty"`
	TimesOfDay []string `yaml:"timeOfDay,omitempty"`
}

// Allows reports whether a passes the filter.
func (f Filter) Allows(a Asset) bool {
	if len(f.Scenes) > 0 {
		scene := ParseScene(a.Scene)
		if !slices.ContainsFunc(f.Scenes, func(s string) bool { return ParseScene(s) == scene }) {
			return false
		}
	}
	if len(f.TimesOfDay) > 0 {
		tod := media.ParseTimeOfDay(a.TimeOfDay)
		if !slices.ContainsFunc(f.TimesOfDay, func(s string) bool { return media.ParseTimeOfDay(s) == tod }) {
			return false
		}
	}
	return true
}

// Build turns documents into playable items at quality q and a manifest keyed
// by every URL variant. Assets rejected by f still contribute metadata.
func Build(docs []Document, q Quality, f Filter, strs map[string]string, forceHTTP bool) ([]media.Item, media.Manifest) {
	var items []media.Item
	meta := media.Manifest{}
	for _, doc := range docs {
		for _, a := range doc.Assets {
			entry := a.Entry(strs)
			for _, u := range a.AllURLs() {
				meta.Add(u, entry)
			}
			if !f.Allows(a) {
				continue
			}
			u := a.URLAt(q)
			if u == "" {
				continue
			}
			if forceHTTP {
				u = httpOnly(u)
			}
			items = append(items, media.Item{
				URI:  u,
				Kind: media.KindVideo,
				Metadata: media.Metadata{
					TimeOfDay: entry.TimeOfDay,
				},
			})
		}
	}
	return items, meta
}

func httpOnly(u string) string {
	if strings.HasPrefix(strings.ToLower(u), "https://") {
		return "http://" + u[len("https://"):]
	}
	return u
}
