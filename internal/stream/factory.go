// SPDX-License-Identifier: MIT

package stream

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/theothernt/AerialViews-sub000/internal/platform/httpx"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
)

// Options configure sessions created by a Factory.
type Options struct {
	Fallback LengthFallback
	// Timeout bounds connection setup and probes, not the body stream.
	Timeout time.Duration
	// WebDAV credentials used when a locator carries none.
	WebDAVUser     string
	WebDAVPassword string
	Recorder       Recorder
	Logger         *zerolog.Logger
}

// Factory creates sessions for a locator by scheme.
type Factory struct {
	smb  remotefs.SMBDialer
	http *http.Client
	opts Options
}

// NewFactory wires the SMB dialer and HTTP client shared by all sessions.
// Nil arguments get production defaults.
func NewFactory(dialer remotefs.SMBDialer, client *http.Client, opts Options) *Factory {
	if dialer == nil {
		dialer = remotefs.NewSMBDialer(opts.Timeout)
	}
	if client == nil {
		client = httpx.NewStreamingClient(opts.Timeout)
	}
	return &Factory{smb: dialer, http: client, opts: opts}
}

// NewSession returns an unopened session whose backend matches the scheme of uri.
func (f *Factory) NewSession(uri string) (*Session, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "smb":
		return NewSMBSession(f.smb, f.opts), nil
	case "http", "https", "dav", "davs":
		return NewWebDAVSession(f.http, f.opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Supports reports whether the factory can stream uri.
func Supports(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "smb", "http", "https", "dav", "davs":
		return true
	}
	return false
}
