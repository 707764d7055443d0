// SPDX-License-Identifier: MIT

package remotefs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

// DAVTarget is a parsed WebDAV/HTTP locator.
type DAVTarget struct {
	Root     string // scheme://host[:port]
	Path     string // decoded path, leading slash
	User     string
	Password string
}

// ParseDAVURL accepts http, https, dav and davs locators. dav and davs are
// aliases for http and https.
func ParseDAVURL(raw string) (DAVTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return DAVTarget{}, fmt.Errorf("parse webdav url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
	case "dav":
		scheme = "http"
	case "davs":
		scheme = "https"
	default:
		return DAVTarget{}, fmt.Errorf("parse webdav url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return DAVTarget{}, errors.New("parse webdav url: missing host")
	}

	t := DAVTarget{Root: scheme + "://" + u.Host, Path: u.Path}
	if t.Path == "" {
		t.Path = "/"
	}
	if u.User != nil {
		t.User = u.User.Username()
		t.Password, _ = u.User.Password()
	}
	return t, nil
}

// URL builds the locator of path p on the same server, with credentials.
func (t DAVTarget) URL(p string) string {
	u, err := url.Parse(t.Root)
	if err != nil {
		return t.Root + p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u.Path = p
	if t.User != "" {
		u.User = url.UserPassword(t.User, t.Password)
	}
	return u.String()
}

// Redacted is the locator of the target path without its password.
func (t DAVTarget) Redacted() string {
	u, err := url.Parse(t.URL(t.Path))
	if err != nil {
		return t.Root
	}
	return u.Redacted()
}

// WithCredentials fills in credentials when the locator carried none.
func (t DAVTarget) WithCredentials(user, password string) DAVTarget {
	if t.User == "" && user != "" {
		t.User, t.Password = user, password
	}
	return t
}

// NewDAVClient returns a gowebdav client rooted at the server of t.
func NewDAVClient(t DAVTarget, timeout time.Duration, transport http.RoundTripper) *gowebdav.Client {
	c := gowebdav.NewClient(t.Root, t.User, t.Password)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	if transport != nil {
		c.SetTransport(transport)
	}
	return c
}

// ClassifyDAV maps a gowebdav error to a Cause. err must be the error as
// returned by gowebdav, not a wrapped copy.
func ClassifyDAV(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	switch {
	case gowebdav.IsErrNotFound(err), gowebdav.IsErrCode(err, http.StatusConflict), gowebdav.IsErrCode(err, http.StatusGone):
		return NewError(CausePathNotFound, op, target, err)
	case gowebdav.IsErrCode(err, http.StatusUnauthorized), gowebdav.IsErrCode(err, http.StatusForbidden):
		return NewError(CauseAuthRejected, op, target, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(CauseUnknown, op, target, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) || isNetworkError(err) {
		return NewError(CauseHostUnreachable, op, target, err)
	}
	return NewError(CauseUnknown, op, target, err)
}

// ClassifyHTTPStatus maps a plain HTTP response status to a Cause.
func ClassifyHTTPStatus(op, target string, status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return NewError(CausePathNotFound, op, target, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(CauseAuthRejected, op, target, err)
	case status >= 500:
		return NewError(CauseHostUnreachable, op, target, err)
	default:
		return NewError(CauseUnknown, op, target, err)
	}
}
