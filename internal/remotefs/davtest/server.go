// SPDX-License-Identifier: MIT

// Package davtest runs an in-memory WebDAV server for tests.
package davtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/net/webdav"
)

// Server is an httptest server backed by an in-memory WebDAV file system.
type Server struct {
	*httptest.Server
	FS       webdav.FileSystem
	User     string
	Password string

	requests atomic.Int64
}

// New starts a server. Empty user disables authentication.
func New(t testing.TB, user, password string) *Server {
	t.Helper()
	s := &Server{
		FS:       webdav.NewMemFS(),
		User:     user,
		Password: password,
	}
	dav := &webdav.Handler{
		FileSystem: s.FS,
		LockSystem: webdav.NewMemLS(),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if s.User != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != s.User || p != s.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="davtest"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Put writes data at p, creating parent folders.
func (s *Server) Put(t testing.TB, p string, data []byte) {
	t.Helper()
	ctx := context.Background()
	dir := path.Dir(p)
	if dir != "/" && dir != "." {
		var cur string
		for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
			cur += "/" + part
			if err := s.FS.Mkdir(ctx, cur, 0o755); err != nil && !os.IsExist(err) {
				t.Fatalf("mkdir %s: %v", cur, err)
			}
		}
	}
	f, err := s.FS.OpenFile(ctx, p, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("create %s: %v", p, err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", p, err)
	}
}

// URL returns the locator of p, with the server credentials when set.
func (s *Server) URL(p string) string {
	base := s.Server.URL
	if s.User != "" {
		base = strings.Replace(base, "://", "://"+s.User+":"+s.Password+"@", 1)
	}
	return base + p
}

// Requests is the number of requests served so far.
func (s *Server) Requests() int64 { return s.requests.Load() }
