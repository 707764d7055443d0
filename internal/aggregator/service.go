// SPDX-License-Identifier: MIT

package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/playlist"
)

type snapshot struct {
	playlist *playlist.Playlist
	report   Report
	finished time.Time
}

// Service keeps the latest playlist for the daemon and refreshes it on a
// schedule or on demand. Concurrent refreshes share one run.
type Service struct {
	agg     *Aggregator
	options func() Options
	logger  zerolog.Logger

	group   singleflight.Group
	current atomic.Pointer[snapshot]
	trigger chan struct{}

	subMu       sync.RWMutex
	subscribers []func(*playlist.Playlist, Report)
}

// NewService wraps agg. options is called at the start of every run so a
// reloaded configuration takes effect on the next refresh.
func NewService(agg *Aggregator, options func() Options) *Service {
	return &Service{
		agg:     agg,
		options: options,
		logger:  xglog.WithComponent("aggregator.service"),
		trigger: make(chan struct{}, 1),
	}
}

// Refresh runs an aggregation, or joins the one already in flight, and
// publishes the result.
func (s *Service) Refresh(ctx context.Context) (*playlist.Playlist, Report) {
	v, _, shared := s.group.Do("refresh", func() (any, error) {
		// detached so one caller cancelling does not abort the shared run
		runCtx := context.WithoutCancel(ctx)
		pl, report := s.agg.Run(runCtx, s.options())
		snap := &snapshot{playlist: pl, report: report, finished: time.Now()}
		s.current.Store(snap)
		s.publish(snap)
		return snap, nil
	})
	snap := v.(*snapshot)
	if shared {
		s.logger.Debug().Str(xglog.FieldEvent, "aggregate.shared").Str(xglog.FieldRunID, snap.report.RunID).Msg("joined in-flight aggregation")
	}
	return snap.playlist, snap.report
}

// OnPublish registers fn to run after every refresh with the new playlist.
// Subscribers run synchronously on the refreshing goroutine.
func (s *Service) OnPublish(fn func(*playlist.Playlist, Report)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Service) publish(snap *snapshot) {
	s.subMu.RLock()
	subs := append(([]func(*playlist.Playlist, Report))(nil), s.subscribers...)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(snap.playlist, snap.report)
	}
}

// Current returns the latest playlist, or nil before the first run.
func (s *Service) Current() *playlist.Playlist {
	if snap := s.current.Load(); snap != nil {
		return snap.playlist
	}
	return nil
}

// LastReport returns the report of the latest run and when it finished.
func (s *Service) LastReport() (Report, time.Time, bool) {
	snap := s.current.Load()
	if snap == nil {
		return Report{}, time.Time{}, false
	}
	return snap.report, snap.finished, true
}

// Trigger asks the refresh loop for an early run. It never blocks.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes immediately and then every interval (or on Trigger) until
// ctx is done. A non-positive interval refreshes only on Trigger.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	s.Refresh(ctx)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str(xglog.FieldEvent, "aggregate.loop_stopped").Msg("refresh loop stopped")
			return nil
		case <-tick:
			s.Refresh(ctx)
		case <-s.trigger:
			s.Refresh(ctx)
		}
	}
}
