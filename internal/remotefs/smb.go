// SPDX-License-Identifier: MIT

package remotefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"
)

const (
	defaultSMBPort   = 445
	defaultSMBDomain = "WORKGROUP"
	guestUser        = "Guest"
)

// NT status codes used to classify failures.
const (
	statusAccessDenied        uint32 = 0xC0000022
	statusObjectNameInvalid   uint32 = 0xC0000033
	statusObjectNameNotFound  uint32 = 0xC0000034
	statusObjectPathNotFound  uint32 = 0xC000003A
	statusNoSuchUser          uint32 = 0xC0000064
	statusWrongPassword       uint32 = 0xC000006A
	statusLogonFailure        uint32 = 0xC000006D
	statusAccountRestriction  uint32 = 0xC000006E
	statusPasswordExpired     uint32 = 0xC0000071
	statusAccountDisabled     uint32 = 0xC0000072
	statusBadNetworkName      uint32 = 0xC00000CC
	statusNotFound            uint32 = 0xC0000225
	statusObjectPathSyntaxBad uint32 = 0xC000003B
)

// SMBTarget is a parsed smb:// locator.
type SMBTarget struct {
	Host     string
	Port     int
	User     string
	Password string
	Domain   string
	Share    string
	Path     string // share-relative, forward slashes, no leading slash
}

// ParseSMBURL parses smb://[user[:pass]@]host[:port]/share/path...
func ParseSMBURL(raw string) (SMBTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return SMBTarget{}, fmt.Errorf("parse smb url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "smb") {
		return SMBTarget{}, fmt.Errorf("parse smb url: unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return SMBTarget{}, errors.New("parse smb url: missing host")
	}

	t := SMBTarget{Host: u.Hostname(), Port: defaultSMBPort, Domain: defaultSMBDomain}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return SMBTarget{}, fmt.Errorf("parse smb url: invalid port %q", p)
		}
		t.Port = port
	}
	if u.User != nil {
		t.User = u.User.Username()
		t.Password, _ = u.User.Password()
	}
	// DOMAIN;user is the conventional way to carry a domain in the userinfo.
	if d, user, ok := strings.Cut(t.User, ";"); ok {
		t.Domain, t.User = d, user
	}

	share, rest, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	t.Share = share
	t.Path = strings.Trim(rest, "/")
	return t, nil
}

// Address is host:port for dialing.
func (t SMBTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL builds the locator for a share-relative path.
func (t SMBTarget) URL(rel string) string {
	u := url.URL{Scheme: "smb", Host: t.Host}
	if t.Port != defaultSMBPort && t.Port != 0 {
		u.Host = t.Address()
	}
	user := t.User
	if t.Domain != "" && t.Domain != defaultSMBDomain && user != "" {
		user = t.Domain + ";" + user
	}
	switch {
	case user != "" && t.Password != "":
		u.User = url.UserPassword(user, t.Password)
	case user != "":
		u.User = url.User(user)
	}
	u.Path = "/" + strings.Trim(t.Share+"/"+strings.Trim(rel, "/"), "/")
	return u.String()
}

// Redacted is the locator of the target path without its password.
func (t SMBTarget) Redacted() string {
	u, _ := url.Parse(t.URL(t.Path))
	if u == nil {
		return "smb://" + t.Host
	}
	return u.Redacted()
}

// SMBFile is an opened remote file.
type SMBFile interface {
	io.Reader
	io.Seeker
	io.Closer
	Stat() (fs.FileInfo, error)
}

// SMBShare is a mounted tree.
type SMBShare interface {
	Open(name string) (SMBFile, error)
	ReadDir(name string) ([]fs.FileInfo, error)
	Umount() error
}

// SMBConn is an authenticated session.
type SMBConn interface {
	Mount(share string) (SMBShare, error)
	Logoff() error
}

// SMBDialer establishes authenticated sessions.
type SMBDialer interface {
	Dial(ctx context.Context, t SMBTarget) (SMBConn, error)
}

type credentials struct {
	user     string
	password string
}

// credentialAttempts lists the logins to try in order. Empty credentials try
// an anonymous session first and fall back to the guest account.
func credentialAttempts(t SMBTarget) []credentials {
	switch {
	case t.User == "" && t.Password == "":
		return []credentials{{}, {user: guestUser}}
	case strings.EqualFold(t.User, "guest"):
		return []credentials{{user: guestUser, password: t.Password}}
	default:
		return []credentials{{user: t.User, password: t.Password}}
	}
}

// Authenticator opens one session with exactly the given credentials.
type Authenticator func(ctx context.Context, t SMBTarget, user, password string) (SMBConn, error)

type fallbackDialer struct {
	auth Authenticator
}

// NewFallbackDialer wraps auth with the anonymous-then-guest login order.
func NewFallbackDialer(auth Authenticator) SMBDialer {
	return &fallbackDialer{auth: auth}
}

func (d *fallbackDialer) Dial(ctx context.Context, t SMBTarget) (SMBConn, error) {
	var lastErr error
	for _, cred := range credentialAttempts(t) {
		conn, err := d.auth(ctx, t, cred.user, cred.password)
		if err == nil {
			return conn, nil
		}
		lastErr = ClassifySMB("session", t.Redacted(), err)
		if CauseOf(lastErr) != CauseAuthRejected {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewSMBDialer returns a dialer backed by go-smb2.
func NewSMBDialer(timeout time.Duration) SMBDialer {
	nd := &net.Dialer{Timeout: timeout}
	return NewFallbackDialer(func(ctx context.Context, t SMBTarget, user, password string) (SMBConn, error) {
		tcp, err := nd.DialContext(ctx, "tcp", t.Address())
		if err != nil {
			return nil, NewError(CauseHostUnreachable, "dial", t.Redacted(), err)
		}
		dialer := &smb2.Dialer{
			Initiator: &smb2.NTLMInitiator{
				User:     user,
				Password: password,
				Domain:   t.Domain,
			},
		}
		session, err := dialer.DialContext(ctx, tcp)
		if err != nil {
			_ = tcp.Close()
			return nil, err
		}
		return &smb2Conn{session: session, tcp: tcp}, nil
	})
}

type smb2Conn struct {
	session *smb2.Session
	tcp     net.Conn
}

func (c *smb2Conn) Mount(share string) (SMBShare, error) {
	s, err := c.session.Mount(share)
	if err != nil {
		return nil, err
	}
	return &smb2Share{share: s}, nil
}

func (c *smb2Conn) Logoff() error {
	err := c.session.Logoff()
	_ = c.tcp.Close()
	return err
}

type smb2Share struct {
	share *smb2.Share
}

func (s *smb2Share) Open(name string) (SMBFile, error) {
	f, err := s.share.Open(sharePath(name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *smb2Share) ReadDir(name string) ([]fs.FileInfo, error) {
	return s.share.ReadDir(sharePath(name))
}

func (s *smb2Share) Umount() error {
	return s.share.Umount()
}

func sharePath(name string) string {
	return strings.ReplaceAll(strings.Trim(name, "/"), "/", `\`)
}

// ClassifySMB maps an error from stage op to a Cause.
func ClassifySMB(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}

	status, hasStatus := smbStatus(err)
	switch {
	case isNetworkError(err) && !hasStatus:
		return NewError(CauseHostUnreachable, op, target, err)
	case hasStatus && isAuthStatus(status):
		return NewError(CauseAuthRejected, op, target, err)
	}

	switch op {
	case "session":
		return NewError(CauseAuthRejected, op, target, err)
	case "mount":
		return NewError(CauseShareNotFound, op, target, err)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewError(CausePathNotFound, op, target, err)
	}
	if hasStatus {
		switch status {
		case statusObjectNameNotFound, statusObjectPathNotFound, statusObjectNameInvalid,
			statusNotFound, statusObjectPathSyntaxBad:
			return NewError(CausePathNotFound, op, target, err)
		case statusBadNetworkName:
			return NewError(CauseShareNotFound, op, target, err)
		}
	}
	return NewError(CauseUnknown, op, target, err)
}

func smbStatus(err error) (uint32, bool) {
	var re *smb2.ResponseError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}

func isAuthStatus(status uint32) bool {
	switch status {
	case statusAccessDenied, statusNoSuchUser, statusWrongPassword, statusLogonFailure,
		statusAccountRestriction, statusPasswordExpired, statusAccountDisabled:
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Mounted is a session with one share mounted on it.
type Mounted struct {
	Share SMBShare
	conn  SMBConn
	done  bool
}

// Release unmounts the share and logs off. It is safe to call more than once.
func (m *Mounted) Release() error {
	if m == nil || m.done {
		return nil
	}
	m.done = true
	var errs []error
	if m.Share != nil {
		errs = append(errs, m.Share.Umount())
	}
	if m.conn != nil {
		errs = append(errs, m.conn.Logoff())
	}
	return errors.Join(errs...)
}

// MountShare dials t and mounts its share. On failure nothing is left open.
func MountShare(ctx context.Context, d SMBDialer, t SMBTarget) (*Mounted, error) {
	if t.Share == "" {
		return nil, NewError(CauseShareNotFound, "mount", t.Redacted(), errors.New("no share in locator"))
	}
	conn, err := d.Dial(ctx, t)
	if err != nil {
		return nil, ClassifySMB("session", t.Redacted(), err)
	}
	share, err := conn.Mount(t.Share)
	if err != nil {
		_ = conn.Logoff()
		return nil, ClassifySMB("mount", t.Redacted(), err)
	}
	return &Mounted{Share: share, conn: conn}, nil
}
