// SPDX-License-Identifier: MIT

// Package manifest is the remote source built from Apple and community
// aerial manifests. Every asset becomes one video at the configured quality,
// and its metadata is registered for all of its URL variants.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

// Config is the sources.manifest section.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name,omitempty"`
	// URLs are manifest documents of the form {"assets": [...]}.
	URLs []string `yaml:"urls"`
	// StringsURL is an optional JSON object mapping POI keys to text.
	StringsURL string  `yaml:"stringsUrl,omitempty"`
	Quality    Quality `yaml:"quality"`
	Filter     `yaml:",inline"`
	// ForceHTTP rewrites https clip URLs to http for players that cannot
	// validate the CDN certificates.
	ForceHTTP bool          `yaml:"forceHttp,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	CacheTTL  time.Duration `yaml:"cacheTTL,omitempty"`
}

// Source serves videos from manifests. Documents are loaded once per
// aggregation run: Prepare clears the previous run's result.
type Source struct {
	cfg     Config
	fetcher *Fetcher
	logger  zerolog.Logger

	mu     sync.Mutex
	loaded bool
	items  []media.Item
	meta   media.Manifest
}

// New returns a manifest source that downloads through fetcher.
func New(cfg Config, fetcher *Fetcher, logger zerolog.Logger) *Source {
	if cfg.Quality == "" {
		cfg.Quality = Quality1080SDR
	}
	return &Source{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.With().Str(xglog.FieldSource, source.NameOr(cfg.Name, "manifest")).Logger(),
	}
}

func (s *Source) Name() string           { return source.NameOr(s.cfg.Name, "manifest") }
func (s *Source) Enabled() bool          { return s.cfg.Enabled }
func (s *Source) Type() media.SourceType { return media.Remote }

// Prepare drops the documents loaded by the previous run.
func (s *Source) Prepare(context.Context) error {
	if len(s.cfg.URLs) == 0 {
		return fmt.Errorf("manifest: no urls: %w", source.ErrNotConfigured)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded, s.items, s.meta = false, nil, nil
	return nil
}

// FetchMedia returns one video per asset that passes the filter.
func (s *Source) FetchMedia(ctx context.Context) ([]media.Item, error) {
	items, _, err := s.load(ctx)
	return items, err
}

// FetchMetadata returns the entries of every asset, filtered or not.
func (s *Source) FetchMetadata(ctx context.Context) (media.Manifest, error) {
	_, meta, err := s.load(ctx)
	return meta, err
}

func (s *Source) load(ctx context.Context) ([]media.Item, media.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return append([]media.Item(nil), s.items...), s.meta, nil
	}

	var strs map[string]string
	if s.cfg.StringsURL != "" {
		if err := s.fetcher.GetJSON(ctx, s.cfg.StringsURL, &strs); err != nil {
			s.logger.Warn().Err(err).Str(xglog.FieldEvent, "manifest.strings_failed").Msg("POI strings unavailable, using raw keys")
			strs = nil
		}
	}

	var (
		docs []Document
		errs []error
	)
	for _, u := range s.cfg.URLs {
		var doc Document
		if err := s.fetcher.GetJSON(ctx, u, &doc); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			errs = append(errs, err)
			s.logger.Warn().Err(err).Str(xglog.FieldURL, xglog.RedactURI(u)).Msg("manifest unavailable")
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("manifest: %w", errors.Join(errs...))
	}

	items, meta := Build(docs, s.cfg.Quality, s.cfg.Filter, strs, s.cfg.ForceHTTP)
	s.loaded, s.items, s.meta = true, items, meta
	s.logger.Info().
		Int(xglog.FieldCount, len(items)).
		Int("metadata", len(meta)).
		Str("quality", string(s.cfg.Quality)).
		Msg("manifest videos loaded")
	return append([]media.Item(nil), items...), meta, nil
}
