// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theothernt/AerialViews-sub000/internal/source"
	"github.com/theothernt/AerialViews-sub000/internal/source/manifest"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "AERIAL_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // keys read during the last Load
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path is the configuration file, or empty when running from env only.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) consume(key string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

func (l *Loader) envString(key, defaultVal string) string {
	return ParseString(l.consume(key), defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	return ParseBool(l.consume(key), defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	return ParseInt(l.consume(key), defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	return ParseDuration(l.consume(key), defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	return ParseFloat(l.consume(key), defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	return ParseList(l.consume(key), defaultVal)
}

func (l *Loader) envFloatPtr(key string, current *float64) *float64 {
	k := l.consume(key)
	if v, ok := os.LookupEnv(k); !ok || strings.TrimSpace(v) == "" {
		return current
	}
	f := ParseFloat(k, 0)
	return &f
}

// Load loads configuration with precedence: ENV > File > Defaults.
// It enforces the order: parse file (strict) -> apply env -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	normalize(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields are rejected to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	p := &cfg.Playlist
	p.RemoveDuplicates = l.envBool("REMOVE_DUPLICATES", p.RemoveDuplicates)
	p.Shuffle = l.envBool("SHUFFLE", p.Shuffle)
	p.IgnoreNonManifestVideos = l.envBool("IGNORE_NON_MANIFEST_VIDEOS", p.IgnoreNonManifestVideos)
	p.AutoTimeOfDay = l.envBool("AUTO_TIME_OF_DAY", p.AutoTimeOfDay)
	p.Latitude = l.envFloatPtr("LATITUDE", p.Latitude)
	p.Longitude = l.envFloatPtr("LONGITUDE", p.Longitude)
	p.ManifestDescriptions = l.envBool("MANIFEST_DESCRIPTIONS", p.ManifestDescriptions)
	p.VideoDescription = l.envString("VIDEO_DESCRIPTION", p.VideoDescription)
	p.PhotoDescription = l.envString("PHOTO_DESCRIPTION", p.PhotoDescription)
	p.FetchTimeout = l.envDuration("FETCH_TIMEOUT", p.FetchTimeout)
	p.FetchConcurrency = l.envInt("FETCH_CONCURRENCY", p.FetchConcurrency)
	p.ExportPath = l.envString("EXPORT_PATH", p.ExportPath)

	s := &cfg.Sources
	s.Local.Enabled = l.envBool("LOCAL_ENABLED", s.Local.Enabled)
	s.Local.Roots = l.envList("LOCAL_ROOTS", s.Local.Roots)
	s.SMB.Enabled = l.envBool("SMB_ENABLED", s.SMB.Enabled)
	s.SMB.URL = l.envString("SMB_URL", s.SMB.URL)
	s.WebDAV.Enabled = l.envBool("WEBDAV_ENABLED", s.WebDAV.Enabled)
	s.WebDAV.URL = l.envString("WEBDAV_URL", s.WebDAV.URL)
	s.WebDAV.User = l.envString("WEBDAV_USER", s.WebDAV.User)
	s.WebDAV.Password = l.envString("WEBDAV_PASSWORD", s.WebDAV.Password)
	s.Manifest.Enabled = l.envBool("MANIFEST_ENABLED", s.Manifest.Enabled)
	s.Manifest.URLs = l.envList("MANIFEST_URLS", s.Manifest.URLs)
	s.Manifest.Quality = manifest.Quality(l.envString("MANIFEST_QUALITY", string(s.Manifest.Quality)))
	s.Immich.Enabled = l.envBool("IMMICH_ENABLED", s.Immich.Enabled)
	s.Immich.URL = l.envString("IMMICH_URL", s.Immich.URL)
	s.Immich.APIKey = l.envString("IMMICH_API_KEY", s.Immich.APIKey)
	s.Immich.Password = l.envString("IMMICH_PASSWORD", s.Immich.Password)
	s.CustomFeed.Enabled = l.envBool("CUSTOMFEED_ENABLED", s.CustomFeed.Enabled)
	s.CustomFeed.URLs = l.envList("CUSTOMFEED_URLS", s.CustomFeed.URLs)

	st := &cfg.Streaming
	st.LengthFallback = l.envString("LENGTH_FALLBACK", st.LengthFallback)
	st.Timeout = l.envDuration("STREAM_TIMEOUT", st.Timeout)
	st.WebDAVPassword = l.envString("STREAM_WEBDAV_PASSWORD", st.WebDAVPassword)

	c := &cfg.Cache
	c.Type = l.envString("CACHE_TYPE", c.Type)
	c.TTL = l.envDuration("CACHE_TTL", c.TTL)
	c.RedisAddr = l.envString("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = l.envString("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = l.envInt("REDIS_DB", c.RedisDB)
	c.BadgerDir = l.envString("BADGER_DIR", c.BadgerDir)

	cfg.Server.ListenAddr = l.envString("LISTEN", cfg.Server.ListenAddr)
	cfg.Server.RateLimit = l.envInt("RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Refresh.Interval = l.envDuration("REFRESH_INTERVAL", cfg.Refresh.Interval)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = l.envString("OTLP_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("OTLP_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("TRACE_SAMPLING_RATE", t.SamplingRate)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
}

// normalize canonicalises enum spellings so consumers can compare directly.
// Invalid values are left alone for Validate to report.
func normalize(cfg *AppConfig) {
	s := &cfg.Sources
	for _, m := range []*source.MediaType{&s.Local.MediaType, &s.SMB.MediaType, &s.WebDAV.MediaType, &s.Immich.MediaType} {
		if parsed, err := source.ParseMediaType(string(*m)); err == nil {
			*m = parsed
		}
	}
	for _, q := range []*manifest.Quality{&s.Manifest.Quality, &s.CustomFeed.Quality} {
		if parsed, err := manifest.ParseQuality(string(*q)); err == nil {
			*q = parsed
		}
	}
	cfg.Cache.Type = strings.ToLower(strings.TrimSpace(cfg.Cache.Type))
	cfg.Streaming.LengthFallback = strings.ToLower(strings.TrimSpace(cfg.Streaming.LengthFallback))
	cfg.Telemetry.Exporter = strings.ToLower(strings.TrimSpace(cfg.Telemetry.Exporter))
}
