// SPDX-License-Identifier: MIT

// Package webdav lists media files on a WebDAV server.
package webdav

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/studio-b12/gowebdav"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

const defaultTimeout = 15 * time.Second

// Config is the sources.webdav section.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name,omitempty"`
	// URL is the folder to list: http(s)://host[:port]/path or dav(s)://...
	URL              string           `yaml:"url"`
	User             string           `yaml:"user,omitempty"`
	Password         string           `yaml:"password,omitempty"`
	MediaType        source.MediaType `yaml:"mediaType"`
	SearchSubfolders bool             `yaml:"searchSubfolders"`
	Timeout          time.Duration    `yaml:"timeout,omitempty"`
}

// Source lists a WebDAV folder with PROPFIND.
type Source struct {
	cfg       Config
	transport http.RoundTripper
	logger    zerolog.Logger
}

// New returns a WebDAV source. A nil transport uses the gowebdav default.
func New(cfg Config, transport http.RoundTripper, logger zerolog.Logger) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Source{
		cfg:       cfg,
		transport: transport,
		logger:    logger.With().Str(xglog.FieldSource, source.NameOr(cfg.Name, "webdav")).Logger(),
	}
}

func (s *Source) Name() string           { return source.NameOr(s.cfg.Name, "webdav") }
func (s *Source) Enabled() bool          { return s.cfg.Enabled }
func (s *Source) Type() media.SourceType { return media.Local }

// Prepare validates the folder locator.
func (s *Source) Prepare(context.Context) error {
	_, err := s.target()
	return err
}

// FetchMedia lists the folder, descending into subfolders when enabled.
func (s *Source) FetchMedia(ctx context.Context) ([]media.Item, error) {
	t, err := s.target()
	if err != nil {
		return nil, err
	}
	c := remotefs.NewDAVClient(t, s.cfg.Timeout, s.transport)

	var items []media.Item
	if err := s.walk(ctx, c, t, t.Path, &items); err != nil {
		return nil, err
	}
	s.logger.Debug().Int(xglog.FieldCount, len(items)).Str(xglog.FieldURI, t.Redacted()).Msg("webdav media listed")
	return items, nil
}

// FetchMetadata returns an empty manifest.
func (s *Source) FetchMetadata(context.Context) (media.Manifest, error) {
	return media.Manifest{}, nil
}

func (s *Source) target() (remotefs.DAVTarget, error) {
	if s.cfg.URL == "" {
		return remotefs.DAVTarget{}, fmt.Errorf("webdav: no url: %w", source.ErrNotConfigured)
	}
	t, err := remotefs.ParseDAVURL(s.cfg.URL)
	if err != nil {
		return remotefs.DAVTarget{}, err
	}
	return t.WithCredentials(s.cfg.User, s.cfg.Password), nil
}

func (s *Source) walk(ctx context.Context, c *gowebdav.Client, t remotefs.DAVTarget, dir string, items *[]media.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := c.ReadDir(dir)
	if err != nil {
		return remotefs.ClassifyDAV("readdir", t.Redacted(), err)
	}
	for _, fi := range entries {
		name := fi.Name()
		if name == "" || media.IsHidden(name) {
			continue
		}
		p := path.Join(dir, name)
		if fi.IsDir() {
			if !s.cfg.SearchSubfolders {
				continue
			}
			if err := s.walk(ctx, c, t, p, items); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn().Err(err).Str(xglog.FieldPath, p).Msg("skipping unreadable folder")
			}
			continue
		}
		kind, ok := s.cfg.MediaType.Classify(name)
		if !ok {
			continue
		}
		*items = append(*items, media.Item{URI: t.URL(p), Kind: kind})
	}
	return nil
}
