// SPDX-License-Identifier: MIT

package daemon

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/playlist"
)

// ExportOnPublish writes every published playlist to the path returned by
// path. An empty path skips the export, so it can be toggled by reload.
func ExportOnPublish(svc *aggregator.Service, path func() string, logger zerolog.Logger) {
	svc.OnPublish(func(pl *playlist.Playlist, report aggregator.Report) {
		target := path()
		if target == "" {
			return
		}
		ctx := xglog.ContextWithRunID(context.Background(), report.RunID)
		if err := playlist.WriteFile(ctx, target, pl.Items()); err != nil {
			logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "playlist.export_failed").
				Str(xglog.FieldPath, target).
				Str(xglog.FieldRunID, report.RunID).
				Msg("playlist export failed")
		}
	})
}
