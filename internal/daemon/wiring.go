// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/api"
	"github.com/theothernt/AerialViews-sub000/internal/cache"
	"github.com/theothernt/AerialViews-sub000/internal/config"
	"github.com/theothernt/AerialViews-sub000/internal/health"
	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/metrics"
	"github.com/theothernt/AerialViews-sub000/internal/platform/httpx"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/resilience"
	"github.com/theothernt/AerialViews-sub000/internal/source/customfeed"
	"github.com/theothernt/AerialViews-sub000/internal/source/immich"
	"github.com/theothernt/AerialViews-sub000/internal/source/local"
	"github.com/theothernt/AerialViews-sub000/internal/source/manifest"
	"github.com/theothernt/AerialViews-sub000/internal/source/smb"
	"github.com/theothernt/AerialViews-sub000/internal/source/webdav"
	"github.com/theothernt/AerialViews-sub000/internal/stream"
	"github.com/theothernt/AerialViews-sub000/internal/telemetry"
)

const (
	breakerThreshold = 3
	breakerReset     = time.Minute
)

// Overrides replace network plumbing, mainly for tests.
type Overrides struct {
	SMBDialer remotefs.SMBDialer
	// HTTPClient serves manifest, feed and photo-server requests.
	HTTPClient *http.Client
	// DAVTransport serves WebDAV listings.
	DAVTransport http.RoundTripper
	// StreamClient serves byte-range streaming.
	StreamClient *http.Client
}

// Runtime is the wired object graph of one daemon.
type Runtime struct {
	Service *aggregator.Service
	API     *api.Server
	Health  *health.Manager
	Streams *stream.Factory
	Sources []media.Source
	Cache   cache.Cache

	logger zerolog.Logger
}

// Build wires sources, aggregation, streaming and the HTTP API from cfg.
// options is read at the start of every aggregation run.
func Build(cfg config.AppConfig, options func() aggregator.Options, ov Overrides) (*Runtime, error) {
	logger := xglog.WithComponent("daemon")

	store, err := cache.Open(cache.Config{
		Type:            cfg.Cache.Type,
		CleanupInterval: cfg.Cache.CleanupInterval,
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		BadgerDir:       cfg.Cache.BadgerDir,
	}, xglog.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	dialer := ov.SMBDialer
	if dialer == nil {
		dialer = remotefs.NewSMBDialer(cfg.Streaming.SMBTimeout)
	}

	sources := buildSources(cfg, store, dialer, ov)

	agg := aggregator.New(sources,
		aggregator.WithMetrics(metrics.Aggregation{}),
		aggregator.WithLogger(xglog.WithComponent("aggregator")),
		aggregator.WithTracer(telemetry.Tracer("aggregator")),
	)
	svc := aggregator.NewService(agg, options)

	fallback, err := stream.ParseLengthFallback(cfg.Streaming.LengthFallback)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	streamClient := ov.StreamClient
	if streamClient == nil {
		streamClient = httpx.Instrument(httpx.NewStreamingClient(cfg.Streaming.Timeout))
	}
	streamLogger := xglog.WithComponent("stream")
	streams := stream.NewFactory(dialer, streamClient, stream.Options{
		Fallback:       fallback,
		Timeout:        cfg.Streaming.Timeout,
		WebDAVUser:     cfg.Streaming.WebDAVUser,
		WebDAVPassword: cfg.Streaming.WebDAVPassword,
		Recorder:       metrics.Streaming{},
		Logger:         &streamLogger,
	})

	hm := health.NewManager(cfg.Version)
	registerChecks(hm, cfg, svc, store)

	serviceName := ""
	if cfg.Telemetry.Enabled {
		serviceName = cfg.Log.Service
	}
	server := api.New(api.Deps{
		Playlists:   svc,
		Streams:     streams,
		Health:      hm,
		ServiceName: serviceName,
		RateLimit:   cfg.Server.RateLimit,
	})

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	logger.Info().
		Str(xglog.FieldEvent, "daemon.wired").
		Strs("sources", names).
		Str("cache", cfg.Cache.Type).
		Str("length_fallback", fallback.String()).
		Msg("runtime wired")

	return &Runtime{
		Service: svc,
		API:     server,
		Health:  hm,
		Streams: streams,
		Sources: sources,
		Cache:   store,
		logger:  logger,
	}, nil
}

// Close releases the cache backend.
func (r *Runtime) Close(context.Context) error {
	if r.Cache == nil {
		return nil
	}
	return r.Cache.Close()
}

// buildSources returns every source variant in a fixed order. Disabled ones
// are kept so reports list them; the aggregator skips them.
func buildSources(cfg config.AppConfig, store cache.Cache, dialer remotefs.SMBDialer, ov Overrides) []media.Source {
	s := cfg.Sources

	client := func(timeout time.Duration) *http.Client {
		if ov.HTTPClient != nil {
			return ov.HTTPClient
		}
		return httpx.Instrument(httpx.NewClient(timeout))
	}
	fetcher := func(component string, timeout, ttl time.Duration) *manifest.Fetcher {
		if ttl <= 0 {
			ttl = cfg.Cache.TTL
		}
		breaker := resilience.NewCircuitBreaker(component, breakerThreshold, breakerReset)
		return manifest.NewFetcher(component, client(timeout), store, breaker, ttl, xglog.WithComponent(component))
	}

	return []media.Source{
		local.New(s.Local, xglog.WithComponent("source.local")),
		smb.New(s.SMB, dialer, xglog.WithComponent("source.smb")),
		webdav.New(s.WebDAV, ov.DAVTransport, xglog.WithComponent("source.webdav")),
		manifest.New(s.Manifest, fetcher("manifest", s.Manifest.Timeout, s.Manifest.CacheTTL), xglog.WithComponent("source.manifest")),
		immich.New(s.Immich, client(s.Immich.Timeout), xglog.WithComponent("source.immich")),
		customfeed.New(s.CustomFeed, fetcher("customfeed", 0, 0), xglog.WithComponent("source.customfeed")),
	}
}

func registerChecks(hm *health.Manager, cfg config.AppConfig, svc *aggregator.Service, store cache.Cache) {
	hm.RegisterChecker(health.NewPlaylistChecker(func() health.PlaylistState {
		report, finished, ok := svc.LastReport()
		if !ok {
			return health.PlaylistState{}
		}
		return health.PlaylistState{LastRun: finished, Items: report.Videos + report.Images}
	}, cfg.Refresh.MaxAge))

	if cfg.Sources.Local.Enabled {
		for i, root := range cfg.Sources.Local.Roots {
			hm.RegisterChecker(health.NewDirChecker(fmt.Sprintf("local_root_%d", i), root))
		}
	}

	if rc, ok := store.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewPingChecker("redis", rc.HealthCheck))
	}
}
