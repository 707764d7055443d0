// SPDX-License-Identifier: MIT

package timeofday

import (
	"github.com/rs/zerolog"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
)

// Policy says which transition clips are shown during each period.
type Policy struct {
	DayIncludesSunrise   bool
	DayIncludesSunset    bool
	NightIncludesSunrise bool
	NightIncludesSunset  bool
}

// Keep reports whether a clip tagged tod is shown during period.
func (p Policy) Keep(period Period, tod media.TimeOfDay) bool {
	switch period {
	case Day:
		switch tod {
		case media.Day, media.Unknown:
			return true
		case media.Sunrise:
			return p.DayIncludesSunrise
		case media.Sunset:
			return p.DayIncludesSunset
		}
		return false
	case Night:
		switch tod {
		case media.Night, media.Unknown:
			return true
		case media.Sunrise:
			return p.NightIncludesSunrise
		case media.Sunset:
			return p.NightIncludesSunset
		}
		return false
	default:
		return true
	}
}

// Filter removes videos that do not belong to period. Images always pass.
// When every video would be removed the input is returned unchanged.
func Filter(items []media.Item, period Period, policy Policy, logger zerolog.Logger) ([]media.Item, bool) {
	if period == Unknown {
		return items, false
	}

	out := make([]media.Item, 0, len(items))
	videosIn, videosOut := 0, 0
	for _, it := range items {
		if it.Kind != media.KindVideo {
			out = append(out, it)
			continue
		}
		videosIn++
		if policy.Keep(period, it.Metadata.TimeOfDay) {
			out = append(out, it)
			videosOut++
		}
	}

	if videosIn > 0 && videosOut == 0 {
		logger.Warn().
			Str(xglog.FieldEvent, "timeofday.safety_net").
			Str(xglog.FieldPeriod, period.String()).
			Int("videos", videosIn).
			Msg("time-of-day filter would remove every video, keeping unfiltered list")
		return items, true
	}

	logger.Debug().
		Str(xglog.FieldEvent, "timeofday.filtered").
		Str(xglog.FieldPeriod, period.String()).
		Int("videos_in", videosIn).
		Int("videos_out", videosOut).
		Msg("applied time-of-day filter")
	return out, false
}
