// SPDX-License-Identifier: MIT

// Package immich reads photos and videos from an Immich server, either
// through a public shared link or with an API key.
package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/platform/httpx"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

// AuthType selects how the server is accessed.
type AuthType string

const (
	AuthSharedLink AuthType = "shared_link"
	AuthAPIKey     AuthType = "api_key"
)

// ImageType selects the rendition served for photos.
type ImageType string

const (
	ImageOriginal ImageType = "original"
	ImageFullsize ImageType = "fullsize"
	ImagePreview  ImageType = "preview"
)

// VideoType selects the rendition served for videos.
type VideoType string

const (
	VideoOriginal   VideoType = "original"
	VideoTranscoded VideoType = "transcoded"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 10
	defaultRateBurst = 20
	searchPageSize   = 1000
	maxResponseBytes = 64 << 20
)

// ErrAPI wraps every non-success response from the server.
var ErrAPI = errors.New("immich api error")

// Config is the sources.immich section.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name,omitempty"`
	// URL is the server base, e.g. https://photos.example.com.
	URL  string   `yaml:"url"`
	Auth AuthType `yaml:"auth"`
	// SharedLink is the key of a shared link; /share/<key> and /s/<slug>
	// forms and full share URLs are accepted.
	SharedLink string           `yaml:"sharedLink,omitempty"`
	Password   string           `yaml:"password,omitempty"`
	APIKey     string           `yaml:"apiKey,omitempty"`
	Albums     []string         `yaml:"albums,omitempty"`
	Favorites  bool             `yaml:"favorites,omitempty"`
	MediaType  source.MediaType `yaml:"mediaType"`
	ImageType  ImageType        `yaml:"imageType,omitempty"`
	VideoType  VideoType        `yaml:"videoType,omitempty"`
	Timeout    time.Duration    `yaml:"timeout,omitempty"`
	RateLimit  float64          `yaml:"rateLimit,omitempty"`
	RateBurst  int              `yaml:"rateBurst,omitempty"`
}

// Source lists Immich assets. Asset ids, not file names, identify items,
// and photos carry their EXIF description and location.
type Source struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New returns an Immich source. A nil client gets a hardened default.
func New(cfg Config, client *http.Client, logger zerolog.Logger) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Auth == "" {
		cfg.Auth = AuthSharedLink
	}
	if cfg.ImageType == "" {
		cfg.ImageType = ImageFullsize
	}
	if cfg.VideoType == "" {
		cfg.VideoType = VideoOriginal
	}
	if client == nil {
		client = httpx.NewClient(cfg.Timeout)
	}
	return &Source{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logger.With().Str(xglog.FieldSource, source.NameOr(cfg.Name, "immich")).Logger(),
	}
}

func (s *Source) Name() string           { return source.NameOr(s.cfg.Name, "immich") }
func (s *Source) Enabled() bool          { return s.cfg.Enabled }
func (s *Source) Type() media.SourceType { return media.Remote }
func (s *Source) IdentityByURI() bool    { return true }
func (s *Source) CarriesMetadata() bool  { return true }

// Prepare checks that the configured auth mode has what it needs.
func (s *Source) Prepare(context.Context) error {
	if _, err := s.server(); err != nil {
		return err
	}
	switch s.cfg.Auth {
	case AuthSharedLink:
		if cleanSharedKey(s.cfg.SharedLink) == "" {
			return fmt.Errorf("immich: no shared link: %w", source.ErrNotConfigured)
		}
	case AuthAPIKey:
		if s.cfg.APIKey == "" {
			return fmt.Errorf("immich: no api key: %w", source.ErrNotConfigured)
		}
		if len(s.cfg.Albums) == 0 && !s.cfg.Favorites {
			return fmt.Errorf("immich: no albums or favorites selected: %w", source.ErrNotConfigured)
		}
	default:
		return fmt.Errorf("immich: unknown auth type %q", s.cfg.Auth)
	}
	return nil
}

// FetchMedia lists the selected assets.
func (s *Source) FetchMedia(ctx context.Context) ([]media.Item, error) {
	base, err := s.server()
	if err != nil {
		return nil, err
	}

	var (
		assets []asset
		key    string
	)
	switch s.cfg.Auth {
	case AuthAPIKey:
		assets, err = s.selectedAssets(ctx, base)
	default:
		assets, key, err = s.sharedAssets(ctx, base)
	}
	if err != nil {
		return nil, err
	}

	items, excluded := s.mapAssets(base, key, dedupAssets(assets))
	s.logger.Info().
		Int(xglog.FieldCount, len(items)).
		Int("excluded", excluded).
		Str("auth", string(s.cfg.Auth)).
		Msg("immich assets listed")
	return items, nil
}

// FetchMetadata returns an empty manifest; metadata travels with the items.
func (s *Source) FetchMetadata(context.Context) (media.Manifest, error) {
	return media.Manifest{}, nil
}

func (s *Source) server() (string, error) {
	if strings.TrimSpace(s.cfg.URL) == "" {
		return "", fmt.Errorf("immich: no url: %w", source.ErrNotConfigured)
	}
	u, err := url.Parse(strings.TrimSpace(s.cfg.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("immich: invalid url %q", xglog.RedactURI(s.cfg.URL))
	}
	return u.Scheme + "://" + u.Host, nil
}

var sharePrefix = regexp.MustCompile(`^(share|s)/`)

// cleanSharedKey reduces the accepted shared link forms to the key or slug.
func cleanSharedKey(in string) string {
	in = strings.TrimSpace(in)
	if u, err := url.Parse(in); err == nil && u.Host != "" {
		in = u.Path
	}
	in = strings.Trim(in, "/")
	return sharePrefix.ReplaceAllString(in, "")
}

func isSlug(in string) bool {
	in = strings.TrimSpace(in)
	if u, err := url.Parse(in); err == nil && u.Host != "" {
		in = u.Path
	}
	return strings.HasPrefix(strings.Trim(in, "/"), "s/")
}

func (s *Source) sharedAssets(ctx context.Context, base string) ([]asset, string, error) {
	q := url.Values{}
	cleaned := cleanSharedKey(s.cfg.SharedLink)
	if isSlug(s.cfg.SharedLink) {
		q.Set("slug", cleaned)
	} else {
		q.Set("key", cleaned)
	}
	if s.cfg.Password != "" {
		q.Set("password", s.cfg.Password)
	}

	var link sharedLink
	if err := s.do(ctx, http.MethodGet, base+"/api/shared-links/me?"+q.Encode(), nil, &link); err != nil {
		return nil, "", err
	}
	key := link.Key
	if key == "" {
		key = cleaned
	}
	if !link.ShowMetadata {
		s.logger.Warn().Msg("shared link hides metadata; descriptions and locations may be missing")
	}

	switch link.Type {
	case "INDIVIDUAL":
		return link.Assets, key, nil
	case "ALBUM":
		if link.Album == nil || link.Album.ID == "" {
			return nil, key, fmt.Errorf("%w: album shared link without album id", ErrAPI)
		}
		aq := url.Values{}
		aq.Set("key", key)
		if s.cfg.Password != "" {
			aq.Set("password", s.cfg.Password)
		}
		var a album
		if err := s.do(ctx, http.MethodGet, base+"/api/albums/"+url.PathEscape(link.Album.ID)+"?"+aq.Encode(), nil, &a); err != nil {
			return nil, key, err
		}
		return a.Assets, key, nil
	default:
		if link.Album != nil && len(link.Album.Assets) > 0 {
			return link.Album.Assets, key, nil
		}
		return link.Assets, key, nil
	}
}

func (s *Source) selectedAssets(ctx context.Context, base string) ([]asset, error) {
	var (
		all  []asset
		errs []error
	)
	for _, id := range s.cfg.Albums {
		var a album
		if err := s.do(ctx, http.MethodGet, base+"/api/albums/"+url.PathEscape(id), nil, &a); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			s.logger.Warn().Err(err).Str("album", id).Msg("album unavailable")
			continue
		}
		all = append(all, a.Assets...)
	}

	if s.cfg.Favorites {
		favs, err := s.favorites(ctx, base)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			s.logger.Warn().Err(err).Msg("favorites unavailable")
		}
		all = append(all, favs...)
	}

	if len(all) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return all, nil
}

func (s *Source) favorites(ctx context.Context, base string) ([]asset, error) {
	var all []asset
	page := 1
	for {
		req := searchRequest{IsFavorite: true, Page: page, Size: searchPageSize, WithExif: true}
		var resp searchResponse
		if err := s.do(ctx, http.MethodPost, base+"/api/search/metadata", req, &resp); err != nil {
			return all, err
		}
		all = append(all, resp.Assets.Items...)
		if resp.Assets.NextPage == nil {
			return all, nil
		}
		next, err := strconv.Atoi(*resp.Assets.NextPage)
		if err != nil || next <= page {
			return all, nil
		}
		page = next
	}
}

// do performs one rate limited API call and decodes the JSON response.
func (s *Source) do(ctx context.Context, method, rawURL string, body, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.Auth == AuthAPIKey {
		req.Header.Set("x-api-key", s.cfg.APIKey)
	}

	target := xglog.RedactURI(rawURL)
	resp, err := s.client.Do(req)
	if err != nil {
		return remotefs.NewError(remotefs.CauseHostUnreachable, method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		return fmt.Errorf("%w: %s: %w", ErrAPI, apiErr.Message, remotefs.ClassifyHTTPStatus(method, target, resp.StatusCode))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

func dedupAssets(in []asset) []asset {
	seen := make(map[string]struct{}, len(in))
	out := make([]asset, 0, len(in))
	for _, a := range in {
		if a.ID == "" {
			continue
		}
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
