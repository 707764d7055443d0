// SPDX-License-Identifier: MIT

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
)

type webdavBackend struct {
	client   *http.Client
	user     string
	password string
}

// NewWebDAVSession returns an unopened session for WebDAV and plain HTTP(S)
// locators. Bytes are fetched with a ranged GET; the size comes from a
// PROPFIND, or from a HEAD request when the server does not speak WebDAV.
func NewWebDAVSession(client *http.Client, opts Options) *Session {
	return newSession(&webdavBackend{
		client:   client,
		user:     opts.WebDAVUser,
		password: opts.WebDAVPassword,
	}, opts)
}

func (b *webdavBackend) name() string { return "webdav" }

func (b *webdavBackend) redact(uri string) string {
	t, err := remotefs.ParseDAVURL(uri)
	if err != nil {
		return "<invalid-uri>"
	}
	return t.Redacted()
}

func (b *webdavBackend) open(ctx context.Context, uri string, offset int64) (*opened, error) {
	t, err := remotefs.ParseDAVURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	t = t.WithCredentials(b.user, b.password)
	target := t.Redacted()
	if err := ctx.Err(); err != nil {
		return nil, remotefs.NewError(remotefs.CauseUnknown, "open", target, err)
	}

	// gowebdav takes no context; bind it to every request instead. The
	// response body stays tied to ctx for the life of the session.
	client := remotefs.NewDAVClient(t, 0, ctxTransport{ctx: ctx, base: b.client.Transport})

	size := LengthUnknown
	fi, statErr := client.Stat(t.Path)
	switch {
	case statErr == nil && fi.IsDir():
		return nil, remotefs.NewError(remotefs.CausePathNotFound, "stat", target, errIsDirectory)
	case statErr == nil:
		size = fi.Size()
	default:
		classified := remotefs.ClassifyDAV("stat", target, statErr)
		if remotefs.CauseOf(classified) != remotefs.CauseUnknown {
			return nil, classified
		}
		// The server answered but not as WebDAV; ask plain HTTP instead.
		size, err = b.headSize(ctx, t)
		if err != nil {
			return nil, err
		}
	}

	if size != LengthUnknown && offset >= size {
		return &opened{body: http.NoBody, size: size, release: func() error { return nil }}, nil
	}

	var rc io.ReadCloser
	switch {
	case size != LengthUnknown:
		rc, err = client.ReadStreamRange(t.Path, offset, size-offset)
	case offset > 0:
		// ReadStreamRange caps the body at the requested length, which is
		// not known here.
		rc, err = b.getFrom(ctx, t, offset)
		if err != nil {
			return nil, err
		}
	default:
		rc, err = client.ReadStream(t.Path)
	}
	if err != nil {
		return nil, remotefs.ClassifyDAV("get", target, err)
	}
	return &opened{body: rc, size: size, release: rc.Close}, nil
}

type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}

// getFrom requests the file from offset to its end. A server that ignores
// Range answers 200 with the whole file; the leading bytes are skipped.
// An offset past the end yields an empty body.
func (b *webdavBackend) getFrom(ctx context.Context, t remotefs.DAVTarget, offset int64) (io.ReadCloser, error) {
	target := t.Redacted()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Root+escapePath(t.Path), nil)
	if err != nil {
		return nil, remotefs.NewError(remotefs.CauseUnknown, "get", target, err)
	}
	if t.User != "" {
		req.SetBasicAuth(t.User, t.Password)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, remotefs.ClassifyDAV("get", target, err)
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusOK:
		if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
			_ = resp.Body.Close()
			if errors.Is(err, io.EOF) {
				return http.NoBody, nil
			}
			return nil, remotefs.NewError(remotefs.CauseHostUnreachable, "get", target, err)
		}
		return resp.Body, nil
	case http.StatusRequestedRangeNotSatisfiable:
		_ = resp.Body.Close()
		return http.NoBody, nil
	default:
		_ = resp.Body.Close()
		return nil, remotefs.ClassifyHTTPStatus("get", target, resp.StatusCode)
	}
}

// headSize is the fallback length probe. It returns LengthUnknown when the
// server does not report a length; only decisive failures are errors.
func (b *webdavBackend) headSize(ctx context.Context, t remotefs.DAVTarget) (int64, error) {
	target := t.Redacted()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, t.Root+escapePath(t.Path), nil)
	if err != nil {
		return LengthUnknown, remotefs.NewError(remotefs.CauseUnknown, "head", target, err)
	}
	if t.User != "" {
		req.SetBasicAuth(t.User, t.Password)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return LengthUnknown, remotefs.ClassifyDAV("head", target, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
		return LengthUnknown, nil
	}
	classified := remotefs.ClassifyHTTPStatus("head", target, resp.StatusCode)
	if errors.Is(classified, remotefs.ErrRemote) {
		return LengthUnknown, nil
	}
	return LengthUnknown, classified
}
