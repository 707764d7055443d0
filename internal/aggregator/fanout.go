// SPDX-License-Identifier: MIT

package aggregator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/telemetry"
)

const (
	stagePrepare  = "prepare"
	stageMedia    = "media"
	stageMetadata = "metadata"
)

type mediaSlot struct {
	items []media.Item
	err   error
}

type metadataSlot struct {
	manifest media.Manifest
	err      error
}

// fanOut runs task once per source. Every task writes only its own index
// and never returns an error to the group, so siblings are not cancelled.
func (a *Aggregator) fanOut(ctx context.Context, n int, opts Options, task func(ctx context.Context, i int)) {
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			tctx := gctx
			if opts.FetchTimeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(gctx, opts.FetchTimeout)
				defer cancel()
			}
			task(tctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) fetchMedia(ctx context.Context, sources []media.Source, opts Options, logger zerolog.Logger) []mediaSlot {
	slots := make([]mediaSlot, len(sources))
	a.fanOut(ctx, len(sources), opts, func(ctx context.Context, i int) {
		src := sources[i]
		ctx, span := a.tracer.Start(ctx, "source.fetch_media")
		span.SetAttributes(telemetry.SourceAttributes(src.Name(), src.Type().String(), stageMedia)...)
		defer span.End()

		stage := stagePrepare
		err := guard(func() error {
			if err := src.Prepare(ctx); err != nil {
				return fmt.Errorf("prepare: %w", err)
			}
			stage = stageMedia
			items, err := src.FetchMedia(ctx)
			if err != nil {
				return fmt.Errorf("fetch media: %w", err)
			}
			slots[i].items = tag(items, src.Name())
			return nil
		})
		if err != nil {
			slots[i] = mediaSlot{err: err}
			a.sourceFailed(logger, src, stage, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, stage)
		}
	})
	return slots
}

func (a *Aggregator) fetchMetadata(ctx context.Context, sources []media.Source, opts Options, logger zerolog.Logger) []metadataSlot {
	slots := make([]metadataSlot, len(sources))
	a.fanOut(ctx, len(sources), opts, func(ctx context.Context, i int) {
		src := sources[i]
		ctx, span := a.tracer.Start(ctx, "source.fetch_metadata")
		span.SetAttributes(telemetry.SourceAttributes(src.Name(), src.Type().String(), stageMetadata)...)
		defer span.End()

		err := guard(func() error {
			m, err := src.FetchMetadata(ctx)
			if err != nil {
				return fmt.Errorf("fetch metadata: %w", err)
			}
			slots[i].manifest = m
			return nil
		})
		if err != nil {
			slots[i] = metadataSlot{err: err}
			a.sourceFailed(logger, src, stageMetadata, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, stageMetadata)
		}
	})
	return slots
}

func (a *Aggregator) sourceFailed(logger zerolog.Logger, src media.Source, stage string, err error) {
	a.metrics.SourceFailed(src.Name(), stage)
	logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "source.fetch_failed").
		Str(xglog.FieldSource, src.Name()).
		Str(xglog.FieldSourceType, src.Type().String()).
		Str(xglog.FieldStage, stage).
		Msg("source failed, continuing without it")
}

// guard converts a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// tag stamps the source name on every item so dedup and image splitting
// can look up the source capabilities.
func tag(items []media.Item, name string) []media.Item {
	for i := range items {
		items[i].SourceTag = name
	}
	return items
}
