// SPDX-License-Identifier: MIT

// Package api exposes the playlist, its cursor and byte-range streaming of
// playlist items over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/api/middleware"
	"github.com/theothernt/AerialViews-sub000/internal/health"
	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/playlist"
	"github.com/theothernt/AerialViews-sub000/internal/stream"
)

// PlaylistService is the part of aggregator.Service the API needs.
type PlaylistService interface {
	Current() *playlist.Playlist
	LastReport() (aggregator.Report, time.Time, bool)
	Refresh(ctx context.Context) (*playlist.Playlist, aggregator.Report)
	Trigger()
}

// SessionFactory opens streaming sessions for remote items.
type SessionFactory interface {
	NewSession(uri string) (*stream.Session, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Playlists PlaylistService
	Streams   SessionFactory
	Health    *health.Manager
	Logger    *zerolog.Logger

	// ServiceName enables tracing when set.
	ServiceName string
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int
}

// Server routes HTTP requests to the playlist service.
type Server struct {
	playlists PlaylistService
	streams   SessionFactory
	health    *health.Manager
	logger    zerolog.Logger
	router    *chi.Mux
}

// New builds the server and its routes.
func New(d Deps) *Server {
	logger := xglog.WithComponent("api")
	if d.Logger != nil {
		logger = *d.Logger
	}
	if d.Health == nil {
		d.Health = health.NewManager("")
	}
	s := &Server{
		playlists: d.Playlists,
		streams:   d.Streams,
		health:    d.Health,
		logger:    logger,
	}
	s.router = middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: d.ServiceName,
		EnableLogging:  true,
		RateLimit:      d.RateLimit,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/playlist", s.handlePlaylist)
		r.Get("/playlist.m3u", s.handleM3U)
		r.Get("/playlist/next", s.handleCursor(cursorNext))
		r.Get("/playlist/previous", s.handleCursor(cursorPrevious))
		r.Get("/playlist/peek", s.handleCursor(cursorPeek))
		r.Get("/report", s.handleReport)
		r.With(middleware.RefreshRateLimit()).Post("/refresh", s.handleRefresh)

		for _, pattern := range []string{"/items/{index}/stream", "/items/{index}/stream/{name}"} {
			r.Get(pattern, s.handleStream)
			r.Head(pattern, s.handleStream)
		}
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
