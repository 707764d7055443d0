// SPDX-License-Identifier: MIT

package config

import (
	"net"
	"net/url"
	"strings"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/source"
	"github.com/theothernt/AerialViews-sub000/internal/source/immich"
	"github.com/theothernt/AerialViews-sub000/internal/source/manifest"
	"github.com/theothernt/AerialViews-sub000/internal/stream"
)

// Validate checks the whole configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := &ValidationError{}
	validatePlaylist(v, cfg.Playlist)
	validateSources(v, cfg.Sources)

	if _, err := stream.ParseLengthFallback(cfg.Streaming.LengthFallback); err != nil {
		v.add("streaming.lengthFallback", "%v", err)
	}
	if cfg.Streaming.Timeout < 0 || cfg.Streaming.SMBTimeout < 0 {
		v.add("streaming.timeout", "must not be negative")
	}

	switch strings.ToLower(cfg.Cache.Type) {
	case "", "memory", "none", "badger":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			v.add("cache.redisAddr", "required for the redis cache")
		}
	default:
		v.add("cache.type", "unknown cache type %q (supported: memory, redis, badger, none)", cfg.Cache.Type)
	}

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
		v.add("server.listenAddr", "%v", err)
	}
	if cfg.Server.RateLimit < 0 {
		v.add("server.rateLimit", "must not be negative")
	}
	if cfg.Refresh.Interval < 0 {
		v.add("refresh.interval", "must not be negative")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			v.add("telemetry.exporter", "must be grpc or http, got %q", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			v.add("telemetry.endpoint", "required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.add("telemetry.samplingRate", "must be between 0 and 1")
	}
	return v.errOrNil()
}

func validatePlaylist(v *ValidationError, p PlaylistConfig) {
	if _, err := aggregator.ParseDescriptionStyle(p.VideoDescription); err != nil {
		v.add("playlist.videoDescription", "%v", err)
	}
	if _, err := aggregator.ParseDescriptionStyle(p.PhotoDescription); err != nil {
		v.add("playlist.photoDescription", "%v", err)
	}
	if p.DescriptionDepth < 1 {
		v.add("playlist.descriptionDepth", "must be at least 1")
	}
	if p.FetchTimeout < 0 {
		v.add("playlist.fetchTimeout", "must not be negative")
	}
	if p.FetchConcurrency < 0 {
		v.add("playlist.fetchConcurrency", "must not be negative")
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		v.add("playlist.latitude", "latitude and longitude must be set together")
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		v.add("playlist.latitude", "must be between -90 and 90")
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		v.add("playlist.longitude", "must be between -180 and 180")
	}
	if p.AutoTimeOfDay && p.Latitude == nil {
		v.add("playlist.autoTimeOfDay", "requires latitude and longitude")
	}
}

func validateMediaType(v *ValidationError, field string, m source.MediaType) {
	if _, err := source.ParseMediaType(string(m)); err != nil {
		v.add(field, "%v", err)
	}
}

func validateSources(v *ValidationError, s SourcesConfig) {
	if s.Local.Enabled {
		validateMediaType(v, "sources.local.mediaType", s.Local.MediaType)
		if len(s.Local.Roots) == 0 {
			v.add("sources.local.roots", "at least one root is required")
		}
	}
	if s.SMB.Enabled {
		validateMediaType(v, "sources.smb.mediaType", s.SMB.MediaType)
		if _, err := remotefs.ParseSMBURL(s.SMB.URL); err != nil {
			v.add("sources.smb.url", "%v", err)
		}
	}
	if s.WebDAV.Enabled {
		validateMediaType(v, "sources.webdav.mediaType", s.WebDAV.MediaType)
		if _, err := remotefs.ParseDAVURL(s.WebDAV.URL); err != nil {
			v.add("sources.webdav.url", "%v", err)
		}
	}
	if s.Manifest.Enabled {
		if _, err := manifest.ParseQuality(string(s.Manifest.Quality)); err != nil {
			v.add("sources.manifest.quality", "%v", err)
		}
		if len(s.Manifest.URLs) == 0 {
			v.add("sources.manifest.urls", "at least one manifest url is required")
		}
		for _, u := range s.Manifest.URLs {
			if !isHTTPURL(u) {
				v.add("sources.manifest.urls", "not an http(s) url: %q", u)
			}
		}
	}
	if s.Immich.Enabled {
		validateMediaType(v, "sources.immich.mediaType", s.Immich.MediaType)
		if !isHTTPURL(s.Immich.URL) {
			v.add("sources.immich.url", "not an http(s) url")
		}
		switch s.Immich.Auth {
		case immich.AuthSharedLink:
			if s.Immich.SharedLink == "" {
				v.add("sources.immich.sharedLink", "required for shared_link auth")
			}
		case immich.AuthAPIKey:
			if s.Immich.APIKey == "" {
				v.add("sources.immich.apiKey", "required for api_key auth")
			}
			if len(s.Immich.Albums) == 0 && !s.Immich.Favorites {
				v.add("sources.immich.albums", "select albums or favorites")
			}
		default:
			v.add("sources.immich.auth", "must be shared_link or api_key, got %q", s.Immich.Auth)
		}
		switch s.Immich.ImageType {
		case immich.ImageOriginal, immich.ImageFullsize, immich.ImagePreview:
		default:
			v.add("sources.immich.imageType", "must be original, fullsize or preview")
		}
		switch s.Immich.VideoType {
		case immich.VideoOriginal, immich.VideoTranscoded:
		default:
			v.add("sources.immich.videoType", "must be original or transcoded")
		}
	}
	if s.CustomFeed.Enabled {
		if _, err := manifest.ParseQuality(string(s.CustomFeed.Quality)); err != nil {
			v.add("sources.customfeed.quality", "%v", err)
		}
		if len(s.CustomFeed.URLs) == 0 {
			v.add("sources.customfeed.urls", "at least one feed url is required")
		}
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}
