// SPDX-License-Identifier: MIT

// Package customfeed serves user supplied feeds. Each configured URL is one
// of: an entries.json asset list, a manifest.json that points at entries
// files, or an rtsp:// stream played as a single video.
package customfeed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/source"
	"github.com/theothernt/AerialViews-sub000/internal/source/manifest"
)

// Config is the sources.customfeed section.
type Config struct {
	Enabled bool             `yaml:"enabled"`
	Name    string           `yaml:"name,omitempty"`
	URLs    []string         `yaml:"urls"`
	Quality manifest.Quality `yaml:"quality"`
	manifest.Filter `yaml:",inline"`
}

// Feed is one entry of a manifest.json "sources" list.
type Feed struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Scenes      []string `json:"scenes,omitempty"`
	ManifestURL string   `json:"manifestUrl"`
	License     string   `json:"license,omitempty"`
	More        string   `json:"more,omitempty"`
	Local       bool     `json:"local,omitempty"`
	Cacheable   *bool    `json:"cacheable,omitempty"`
}

// feedManifest accepts both the single-feed and the feed-list layouts.
type feedManifest struct {
	Feed
	Sources []Feed `json:"sources"`
}

// Source aggregates every configured feed.
type Source struct {
	cfg     Config
	fetcher *manifest.Fetcher
	logger  zerolog.Logger

	mu     sync.Mutex
	loaded bool
	items  []media.Item
	meta   media.Manifest
}

// New returns a custom feed source.
func New(cfg Config, fetcher *manifest.Fetcher, logger zerolog.Logger) *Source {
	if cfg.Quality == "" {
		cfg.Quality = manifest.Quality1080SDR
	}
	return &Source{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.With().Str(xglog.FieldSource, source.NameOr(cfg.Name, "customfeed")).Logger(),
	}
}

func (s *Source) Name() string           { return source.NameOr(s.cfg.Name, "customfeed") }
func (s *Source) Enabled() bool          { return s.cfg.Enabled }
func (s *Source) Type() media.SourceType { return media.Remote }

// Prepare drops the previous run's result and checks the URL list.
func (s *Source) Prepare(context.Context) error {
	if len(urls(s.cfg.URLs)) == 0 {
		return fmt.Errorf("customfeed: no urls: %w", source.ErrNotConfigured)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded, s.items, s.meta = false, nil, nil
	return nil
}

func (s *Source) FetchMedia(ctx context.Context) ([]media.Item, error) {
	items, _, err := s.load(ctx)
	return items, err
}

func (s *Source) FetchMetadata(ctx context.Context) (media.Manifest, error) {
	_, meta, err := s.load(ctx)
	return meta, err
}

func urls(raw []string) []string {
	var out []string
	for _, u := range raw {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// IsRTSP reports whether u is an RTSP stream locator.
func IsRTSP(u string) bool {
	return len(u) >= 7 && strings.EqualFold(u[:7], "rtsp://")
}

// ManifestURL returns the manifest.json locator for a feed base URL.
func ManifestURL(u string) string {
	if strings.HasSuffix(strings.ToLower(u), "manifest.json") {
		return u
	}
	return strings.TrimRight(u, "/") + "/manifest.json"
}

func isEntries(u string) bool {
	return strings.HasSuffix(strings.ToLower(u), "entries.json")
}

func (s *Source) load(ctx context.Context) ([]media.Item, media.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return append([]media.Item(nil), s.items...), s.meta, nil
	}

	var (
		items []media.Item
		meta  = media.Manifest{}
		errs  []error
	)
	for _, u := range urls(s.cfg.URLs) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if IsRTSP(u) {
			items = append(items, media.Item{URI: u, Kind: media.KindVideo})
			meta.Add(u, media.ManifestEntry{Description: "RTSP Stream: " + xglog.RedactURI(u)})
			continue
		}

		entries := []string{u}
		if !isEntries(u) {
			found, err := s.resolve(ctx, ManifestURL(u))
			if err != nil {
				errs = append(errs, err)
				s.logger.Warn().Err(err).Str(xglog.FieldURL, xglog.RedactURI(u)).Msg("feed has no usable manifest")
				continue
			}
			entries = found
		}
		for _, e := range entries {
			var doc manifest.Document
			if err := s.fetcher.GetJSON(ctx, e, &doc); err != nil {
				errs = append(errs, err)
				s.logger.Warn().Err(err).Str(xglog.FieldURL, xglog.RedactURI(e)).Msg("feed entries unavailable")
				continue
			}
			fi, fm := manifest.Build([]manifest.Document{doc}, s.cfg.Quality, s.cfg.Filter, nil, false)
			items = append(items, fi...)
			meta.Merge(fm)
		}
	}
	if len(items) == 0 && len(errs) > 0 {
		return nil, nil, fmt.Errorf("customfeed: %w", errors.Join(errs...))
	}

	s.loaded, s.items, s.meta = true, items, meta
	s.logger.Info().Int(xglog.FieldCount, len(items)).Int("metadata", len(meta)).Msg("custom feeds loaded")
	return append([]media.Item(nil), items...), meta, nil
}

// resolve reads a manifest.json and returns the entries files it lists.
func (s *Source) resolve(ctx context.Context, u string) ([]string, error) {
	var m feedManifest
	if err := s.fetcher.GetJSON(ctx, u, &m); err != nil {
		return nil, err
	}
	var out []string
	if m.ManifestURL != "" {
		out = append(out, m.ManifestURL)
	}
	for _, f := range m.Sources {
		if strings.TrimSpace(f.ManifestURL) != "" {
			out = append(out, f.ManifestURL)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no manifestUrl entries", xglog.RedactURI(u))
	}
	return out, nil
}
