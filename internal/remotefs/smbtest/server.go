// SPDX-License-Identifier: MIT

// Package smbtest provides an in-memory SMB server for tests of code that
// talks to remotefs.SMBDialer.
package smbtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hirochachacha/go-smb2"

	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
)

const (
	statusLogonFailure       = 0xC000006D
	statusBadNetworkName     = 0xC00000CC
	statusObjectNameNotFound = 0xC0000034
)

// Stats counts acquired and released resources.
type Stats struct {
	Sessions int
	Logoffs  int
	Mounts   int
	Umounts  int
	Opens    int
	Closes   int
	Logins   []string
}

// Server is a fake SMB host. The zero value is not usable; call NewServer.
type Server struct {
	mu       sync.Mutex
	shares   map[string]map[string][]byte
	accounts map[string]string
	stats    Stats

	// Unreachable makes every connection attempt fail at the TCP stage.
	Unreachable bool
	// StatFails makes File.Stat fail.
	StatFails bool
	// SeekEndFails makes seeking relative to the end fail.
	SeekEndFails bool
	// ShortBy ends every file read this many bytes before the reported size.
	ShortBy int
}

// NewServer returns an empty server that accepts no logins.
func NewServer() *Server {
	return &Server{
		shares:   make(map[string]map[string][]byte),
		accounts: make(map[string]string),
	}
}

// AddShare creates an empty share.
func (s *Server) AddShare(share string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[strings.ToLower(share)]; !ok {
		s.shares[strings.ToLower(share)] = make(map[string][]byte)
	}
}

// AddFile stores data at the share-relative path p, creating the share.
func (s *Server) AddFile(share, p string, data []byte) {
	s.AddShare(share)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[strings.ToLower(share)][clean(p)] = data
}

// Allow accepts user with password. Allow("", "") enables anonymous logins
// and Allow("Guest", "") enables the guest account.
func (s *Server) Allow(user, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(user)] = password
}

// Stats returns a snapshot of the resource counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Logins = append([]string(nil), s.stats.Logins...)
	return st
}

// Balanced reports whether every acquired resource was released.
func (s *Server) Balanced() bool {
	st := s.Stats()
	return st.Sessions == st.Logoffs && st.Mounts == st.Umounts && st.Opens == st.Closes
}

// Dialer returns a remotefs dialer that logs in to this server.
func (s *Server) Dialer() remotefs.SMBDialer {
	return remotefs.NewFallbackDialer(s.Authenticate)
}

// Authenticate is a remotefs.Authenticator.
func (s *Server) Authenticate(ctx context.Context, t remotefs.SMBTarget, user, password string) (remotefs.SMBConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unreachable {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	s.stats.Logins = append(s.stats.Logins, user)
	want, ok := s.accounts[strings.ToLower(user)]
	if !ok || want != password {
		return nil, &smb2.ResponseError{Code: statusLogonFailure}
	}
	s.stats.Sessions++
	return &conn{srv: s}, nil
}

type conn struct {
	srv  *Server
	done bool
}

func (c *conn) Mount(share string) (remotefs.SMBShare, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	files, ok := c.srv.shares[strings.ToLower(share)]
	if !ok {
		return nil, &smb2.ResponseError{Code: statusBadNetworkName}
	}
	c.srv.stats.Mounts++
	return &mount{srv: c.srv, files: files}, nil
}

func (c *conn) Logoff() error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if c.done {
		return errors.New("smbtest: double logoff")
	}
	c.done = true
	c.srv.stats.Logoffs++
	return nil
}

type mount struct {
	srv   *Server
	files map[string][]byte
	done  bool
}

func (m *mount) Open(name string) (remotefs.SMBFile, error) {
	m.srv.mu.Lock()
	defer m.srv.mu.Unlock()
	p := clean(name)
	data, ok := m.files[p]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: &smb2.ResponseError{Code: statusObjectNameNotFound}}
	}
	m.srv.stats.Opens++
	readable := data
	if m.srv.ShortBy > 0 && m.srv.ShortBy <= len(data) {
		readable = data[:len(data)-m.srv.ShortBy]
	}
	return &file{
		srv:          m.srv,
		name:         path.Base(p),
		size:         int64(len(data)),
		r:            bytes.NewReader(readable),
		statFails:    m.srv.StatFails,
		seekEndFails: m.srv.SeekEndFails,
	}, nil
}

func (m *mount) ReadDir(name string) ([]fs.FileInfo, error) {
	m.srv.mu.Lock()
	defer m.srv.mu.Unlock()
	dir := clean(name)
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	seen := make(map[string]fs.FileInfo)
	for p, data := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		child, _, isDir := strings.Cut(rest, "/")
		if isDir {
			seen[child] = info{name: child, dir: true}
		} else {
			seen[child] = info{name: child, size: int64(len(data))}
		}
	}
	if len(seen) == 0 && dir != "" {
		return nil, &os.PathError{Op: "readdir", Path: name, Err: &smb2.ResponseError{Code: statusObjectNameNotFound}}
	}

	out := make([]fs.FileInfo, 0, len(seen))
	for _, fi := range seen {
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (m *mount) Umount() error {
	m.srv.mu.Lock()
	defer m.srv.mu.Unlock()
	if m.done {
		return errors.New("smbtest: double umount")
	}
	m.done = true
	m.srv.stats.Umounts++
	return nil
}

type file struct {
	srv          *Server
	name         string
	size         int64
	r            *bytes.Reader
	statFails    bool
	seekEndFails bool
	closed       bool
}

func (f *file) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	return f.r.Read(p)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekEnd {
		if f.seekEndFails {
			return 0, errors.New("smbtest: seek end unsupported")
		}
		return f.size + offset, nil
	}
	return f.r.Seek(offset, whence)
}

func (f *file) Stat() (fs.FileInfo, error) {
	if f.statFails {
		return nil, errors.New("smbtest: stat failed")
	}
	return info{name: f.name, size: f.size}, nil
}

func (f *file) Close() error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	if f.closed {
		return errors.New("smbtest: double close")
	}
	f.closed = true
	f.srv.stats.Closes++
	return nil
}

type info struct {
	name string
	size int64
	dir  bool
}

func (i info) Name() string { return i.name }
func (i info) Size() int64  { return i.size }
func (i info) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i info) ModTime() time.Time { return time.Time{} }
func (i info) IsDir() bool        { return i.dir }
func (i info) Sys() any           { return nil }

func clean(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
