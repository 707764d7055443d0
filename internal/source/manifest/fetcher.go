// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/theothernt/AerialViews-sub000/internal/cache"
	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/metrics"
	"github.com/theothernt/AerialViews-sub000/internal/resilience"
)

const (
	maxDocumentBytes = 32 << 20
	defaultTTL       = time.Hour
)

// ErrStatus is returned for non-200 responses.
var ErrStatus = errors.New("unexpected response status")

// Fetcher downloads JSON documents. Fresh copies are served from the cache
// for the TTL; when a download fails the last good copy is served instead.
type Fetcher struct {
	client    *http.Client
	cache     cache.Cache
	breaker   *resilience.CircuitBreaker
	ttl       time.Duration
	component string
	logger    zerolog.Logger
}

// NewFetcher returns a fetcher. A nil cache disables caching and a nil
// breaker disables circuit breaking.
func NewFetcher(component string, client *http.Client, c cache.Cache, breaker *resilience.CircuitBreaker, ttl time.Duration, logger zerolog.Logger) *Fetcher {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Fetcher{
		client:    client,
		cache:     c,
		breaker:   breaker,
		ttl:       ttl,
		component: component,
		logger:    logger,
	}
}

func freshKey(url string) string { return "manifest:fresh:" + url }
func staleKey(url string) string { return "manifest:stale:" + url }

// Get returns the body at url.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if body, ok := f.cache.Get(ctx, freshKey(url)); ok {
		return body, nil
	}

	body, err := f.download(ctx, url)
	if err == nil {
		f.cache.Set(ctx, freshKey(url), body, f.ttl)
		f.cache.Set(ctx, staleKey(url), body, 0)
		return body, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if stale, ok := f.cache.Get(ctx, staleKey(url)); ok {
		metrics.RecordStaleServed(f.component)
		f.logger.Warn().
			Err(err).
			Str(xglog.FieldURL, xglog.RedactURI(url)).
			Str(xglog.FieldEvent, "manifest.stale_served").
			Msg("download failed, serving cached copy")
		return stale, nil
	}
	return nil, err
}

// GetJSON decodes the body at url into v.
func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) error {
	body, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", xglog.RedactURI(url), err)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	get := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
		return err
	}

	var err error
	if f.breaker != nil {
		err = f.breaker.Do(ctx, get)
	} else {
		err = get(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", xglog.RedactURI(url), err)
	}
	return body, nil
}
