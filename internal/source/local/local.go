// SPDX-License-Identifier: MIT

// Package local lists media files from folders on the local file system.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

// Config is the sources.local section.
type Config struct {
	Enabled          bool             `yaml:"enabled"`
	Name             string           `yaml:"name,omitempty"`
	Roots            []string         `yaml:"roots"`
	MediaType        source.MediaType `yaml:"mediaType"`
	SearchSubfolders bool             `yaml:"searchSubfolders"`
	// Folder limits results to files below a folder of this name.
	Folder string `yaml:"folder,omitempty"`
}

// Source walks the configured roots.
type Source struct {
	cfg    Config
	logger zerolog.Logger
}

// New returns a local source.
func New(cfg Config, logger zerolog.Logger) *Source {
	return &Source{
		cfg:    cfg,
		logger: logger.With().Str(xglog.FieldSource, source.NameOr(cfg.Name, "local")).Logger(),
	}
}

func (s *Source) Name() string           { return source.NameOr(s.cfg.Name, "local") }
func (s *Source) Enabled() bool          { return s.cfg.Enabled }
func (s *Source) Type() media.SourceType { return media.Local }

// Prepare fails when none of the roots is a readable directory.
func (s *Source) Prepare(context.Context) error {
	if len(s.cfg.Roots) == 0 {
		return fmt.Errorf("local: no roots: %w", source.ErrNotConfigured)
	}
	var errs []error
	for _, root := range s.cfg.Roots {
		fi, err := os.Stat(root)
		switch {
		case err != nil:
			errs = append(errs, err)
		case !fi.IsDir():
			errs = append(errs, fmt.Errorf("%s: not a directory", root))
		default:
			return nil
		}
	}
	return fmt.Errorf("local: no usable root: %w", errors.Join(errs...))
}

// FetchMedia lists every supported file below the roots. Unreadable entries
// are logged and skipped.
func (s *Source) FetchMedia(ctx context.Context) ([]media.Item, error) {
	var items []media.Item
	for _, root := range s.cfg.Roots {
		found, err := s.walk(ctx, root)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).Str(xglog.FieldPath, root).Str(xglog.FieldEvent, "local.walk_failed").Msg("cannot list folder")
			continue
		}
		items = append(items, found...)
	}
	s.logger.Debug().Int(xglog.FieldCount, len(items)).Msg("local media listed")
	return items, nil
}

// FetchMetadata returns an empty manifest; local files carry no metadata.
func (s *Source) FetchMetadata(context.Context) (media.Manifest, error) {
	return media.Manifest{}, nil
}

func (s *Source) walk(ctx context.Context, root string) ([]media.Item, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var items []media.Item
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == root {
				return err
			}
			s.logger.Debug().Err(err).Str(xglog.FieldPath, p).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		if media.IsHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !s.cfg.SearchSubfolders {
				return fs.SkipDir
			}
			return nil
		}
		kind, ok := s.cfg.MediaType.Classify(d.Name())
		if !ok {
			return nil
		}
		uri := fileURI(p)
		if !media.InFolder(uri, s.cfg.Folder) {
			return nil
		}
		items = append(items, media.Item{URI: uri, Kind: kind})
		return nil
	})
	return items, err
}

func fileURI(p string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}
