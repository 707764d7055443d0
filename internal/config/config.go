// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration: defaults, then a strict
// YAML file, then AERIAL_* environment overrides, then validation.
package config

import (
	"time"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/source"
	"github.com/theothernt/AerialViews-sub000/internal/source/customfeed"
	"github.com/theothernt/AerialViews-sub000/internal/source/immich"
	"github.com/theothernt/AerialViews-sub000/internal/source/local"
	"github.com/theothernt/AerialViews-sub000/internal/source/manifest"
	"github.com/theothernt/AerialViews-sub000/internal/source/smb"
	"github.com/theothernt/AerialViews-sub000/internal/source/webdav"
	"github.com/theothernt/AerialViews-sub000/internal/timeofday"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Playlist  PlaylistConfig  `yaml:"playlist"`
	Sources   SourcesConfig   `yaml:"sources"`
	Streaming StreamingConfig `yaml:"streaming"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// PlaylistConfig holds the aggregation toggles.
type PlaylistConfig struct {
	RemoveDuplicates        bool `yaml:"removeDuplicates"`
	Shuffle                 bool `yaml:"shuffle"`
	IgnoreNonManifestVideos bool `yaml:"ignoreNonManifestVideos"`
	AutoTimeOfDay           bool `yaml:"autoTimeOfDay"`

	DayIncludesSunrise   bool `yaml:"dayIncludesSunrise"`
	DayIncludesSunset    bool `yaml:"dayIncludesSunset"`
	NightIncludesSunrise bool `yaml:"nightIncludesSunrise"`
	NightIncludesSunset  bool `yaml:"nightIncludesSunset"`

	// Latitude and Longitude are both required for time-of-day filtering.
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`

	ManifestDescriptions bool   `yaml:"manifestDescriptions"`
	VideoDescription     string `yaml:"videoDescription"`
	PhotoDescription     string `yaml:"photoDescription"`
	DescriptionDepth     int    `yaml:"descriptionDepth"`

	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	FetchConcurrency int           `yaml:"fetchConcurrency"`

	// ExportPath, when set, receives an M3U copy of every new playlist.
	ExportPath string `yaml:"exportPath,omitempty"`
}

// SourcesConfig holds one section per source variant.
type SourcesConfig struct {
	Local      local.Config      `yaml:"local"`
	SMB        smb.Config        `yaml:"smb"`
	WebDAV     webdav.Config     `yaml:"webdav"`
	Manifest   manifest.Config   `yaml:"manifest"`
	Immich     immich.Config     `yaml:"immich"`
	CustomFeed customfeed.Config `yaml:"customfeed"`
}

// StreamingConfig configures byte-range sessions.
type StreamingConfig struct {
	// LengthFallback is unknown, zero or error.
	LengthFallback string        `yaml:"lengthFallback"`
	Timeout        time.Duration `yaml:"timeout"`
	SMBTimeout     time.Duration `yaml:"smbTimeout"`
	WebDAVUser     string        `yaml:"webdavUser,omitempty"`
	WebDAVPassword string        `yaml:"webdavPassword,omitempty"`
}

// CacheConfig selects the manifest cache backend.
type CacheConfig struct {
	// Type is memory, redis, badger or none.
	Type            string        `yaml:"type"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	RedisAddr       string        `yaml:"redisAddr,omitempty"`
	RedisPassword   string        `yaml:"redisPassword,omitempty"`
	RedisDB         int           `yaml:"redisDB,omitempty"`
	BadgerDir       string        `yaml:"badgerDir,omitempty"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int `yaml:"rateLimit"`
}

// RefreshConfig controls periodic re-aggregation.
type RefreshConfig struct {
	// Interval of zero aggregates once at startup only.
	Interval time.Duration `yaml:"interval"`
	// MaxAge is the playlist age after which readiness reports degraded.
	MaxAge time.Duration `yaml:"maxAge"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment,omitempty"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Defaults returns the configuration used before file and environment are
// applied.
func Defaults() AppConfig {
	return AppConfig{
		Playlist: PlaylistConfig{
			RemoveDuplicates:     true,
			Shuffle:              true,
			ManifestDescriptions: true,
			VideoDescription:     aggregator.DescriptionDisabled.String(),
			PhotoDescription:     aggregator.DescriptionDisabled.String(),
			DescriptionDepth:     1,
		},
		Sources: SourcesConfig{
			Local:      local.Config{MediaType: source.MediaVideos, SearchSubfolders: true},
			SMB:        smb.Config{MediaType: source.MediaVideos, SearchSubfolders: true},
			WebDAV:     webdav.Config{MediaType: source.MediaVideos, SearchSubfolders: true},
			Manifest:   manifest.Config{Quality: manifest.Quality1080SDR},
			Immich:     immich.Config{Auth: immich.AuthSharedLink, MediaType: source.MediaPhotos, ImageType: immich.ImageFullsize, VideoType: immich.VideoOriginal},
			CustomFeed: customfeed.Config{Quality: manifest.Quality1080SDR},
		},
		Streaming: StreamingConfig{
			LengthFallback: "unknown",
			Timeout:        10 * time.Second,
			SMBTimeout:     10 * time.Second,
		},
		Cache: CacheConfig{
			Type:            "memory",
			TTL:             6 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Server: ServerConfig{
			ListenAddr:      ":8089",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       300,
		},
		Refresh: RefreshConfig{
			Interval: time.Hour,
			MaxAge:   3 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Log: LogConfig{
			Level:   "info",
			Service: "aerialviews",
		},
	}
}

// Options builds the aggregation snapshot. The config must have passed
// Validate.
func (p PlaylistConfig) Options() aggregator.Options {
	video, _ := aggregator.ParseDescriptionStyle(p.VideoDescription)
	photo, _ := aggregator.ParseDescriptionStyle(p.PhotoDescription)
	o := aggregator.Options{
		RemoveDuplicates:        p.RemoveDuplicates,
		Shuffle:                 p.Shuffle,
		IgnoreNonManifestVideos: p.IgnoreNonManifestVideos,
		AutoTimeOfDay:           p.AutoTimeOfDay,
		TimePolicy: timeofday.Policy{
			DayIncludesSunrise:   p.DayIncludesSunrise,
			DayIncludesSunset:    p.DayIncludesSunset,
			NightIncludesSunrise: p.NightIncludesSunrise,
			NightIncludesSunset:  p.NightIncludesSunset,
		},
		ManifestDescriptions: p.ManifestDescriptions,
		VideoDescription:     video,
		PhotoDescription:     photo,
		DescriptionDepth:     p.DescriptionDepth,
		FetchTimeout:         p.FetchTimeout,
		Concurrency:          p.FetchConcurrency,
	}
	if p.Latitude != nil && p.Longitude != nil {
		o.HasLocation = true
		o.Latitude = *p.Latitude
		o.Longitude = *p.Longitude
	}
	return o
}
