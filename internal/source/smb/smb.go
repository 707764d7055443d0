// SPDX-License-Identifier: MIT

// Package smb lists media files on an SMB share.
package smb

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

// Config is the sources.smb section.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name,omitempty"`
	// URL is smb://[user[:password]@]host[:port]/share[/path].
	URL              string           `yaml:"url"`
	MediaType        source.MediaType `yaml:"mediaType"`
	SearchSubfolders bool             `yaml:"searchSubfolders"`
}

// Source lists a share folder through a remotefs dialer.
type Source struct {
	cfg    Config
	dialer remotefs.SMBDialer
	logger zerolog.Logger
}

// New returns an SMB source.
func New(cfg Config, dialer remotefs.SMBDialer, logger zerolog.Logger) *Source {
	return &Source{
		cfg:    cfg,
		dialer: dialer,
		logger: logger.With().Str(xglog.FieldSource, source.NameOr(cfg.Name, "smb")).Logger(),
	}
}

func (s *Source) Name() string           { return source.NameOr(s.cfg.Name, "smb") }
func (s *Source) Enabled() bool          { return s.cfg.Enabled }
func (s *Source) Type() media.SourceType { return media.Local }

// Prepare validates the share locator.
func (s *Source) Prepare(context.Context) error {
	_, err := s.target()
	return err
}

// FetchMedia mounts the share, lists the configured folder and releases the
// session before returning.
func (s *Source) FetchMedia(ctx context.Context) ([]media.Item, error) {
	t, err := s.target()
	if err != nil {
		return nil, err
	}
	m, err := remotefs.MountShare(ctx, s.dialer, t)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := m.Release(); err != nil {
			s.logger.Debug().Err(err).Msg("smb release failed")
		}
	}()

	var items []media.Item
	if err := s.walk(ctx, m.Share, t, t.Path, &items); err != nil {
		return nil, err
	}
	s.logger.Debug().Int(xglog.FieldCount, len(items)).Str(xglog.FieldURI, t.Redacted()).Msg("smb media listed")
	return items, nil
}

// FetchMetadata returns an empty manifest.
func (s *Source) FetchMetadata(context.Context) (media.Manifest, error) {
	return media.Manifest{}, nil
}

func (s *Source) target() (remotefs.SMBTarget, error) {
	if s.cfg.URL == "" {
		return remotefs.SMBTarget{}, fmt.Errorf("smb: no url: %w", source.ErrNotConfigured)
	}
	return remotefs.ParseSMBURL(s.cfg.URL)
}

func (s *Source) walk(ctx context.Context, share remotefs.SMBShare, t remotefs.SMBTarget, dir string, items *[]media.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := share.ReadDir(dir)
	if err != nil {
		return remotefs.ClassifySMB("readdir", t.Redacted(), err)
	}
	for _, fi := range entries {
		name := fi.Name()
		if media.IsHidden(name) {
			continue
		}
		rel := path.Join(dir, name)
		if fi.IsDir() {
			if !s.cfg.SearchSubfolders {
				continue
			}
			if err := s.walk(ctx, share, t, rel, items); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn().Err(err).Str(xglog.FieldPath, rel).Msg("skipping unreadable folder")
			}
			continue
		}
		kind, ok := s.cfg.MediaType.Classify(name)
		if !ok {
			continue
		}
		*items = append(*items, media.Item{URI: t.URL(rel), Kind: kind})
	}
	return nil
}
