// SPDX-License-Identifier: MIT

// Package stream implements random-access byte sessions over remote shares
// for the playback engine.
//
// A Session moves through CLOSED -> OPEN -> (READ)* -> CLOSED exactly once
// and is owned by a single reader; it is not safe for concurrent use.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
)

// LengthUnknown is returned by Open when the remote size cannot be determined.
const LengthUnknown int64 = -1

var (
	// ErrTruncated means the transport ended before the announced length.
	ErrTruncated = fmt.Errorf("stream truncated before announced length: %w", io.ErrUnexpectedEOF)
	// ErrNotOpen is returned by Read on a session that is not open.
	ErrNotOpen = errors.New("stream: session is not open")
	// ErrSessionReused is returned by Open on a session that was opened before.
	ErrSessionReused = errors.New("stream: session cannot be reopened")
	// ErrInvalidLocator is returned when the uri cannot be parsed for the backend.
	ErrInvalidLocator = errors.New("stream: invalid locator")
	// ErrUnsupportedScheme is returned by the factory for unknown schemes.
	ErrUnsupportedScheme = errors.New("stream: unsupported scheme")
)

// LengthFallback decides what Open reports when neither the primary size
// probe nor the fallback probe could determine the length.
type LengthFallback int

const (
	// FallbackUnknown streams with LengthUnknown and ends on transport EOF.
	FallbackUnknown LengthFallback = iota
	// FallbackZero reports a zero length; reads end immediately.
	FallbackZero
	// FallbackError fails Open with remotefs.ErrLengthUnavailable.
	FallbackError
)

func (f LengthFallback) String() string {
	switch f {
	case FallbackZero:
		return "zero"
	case FallbackError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLengthFallback accepts "unknown", "zero" and "error".
func ParseLengthFallback(s string) (LengthFallback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return FallbackUnknown, nil
	case "zero":
		return FallbackZero, nil
	case "error":
		return FallbackError, nil
	default:
		return FallbackUnknown, fmt.Errorf("invalid length fallback %q (want unknown, zero or error)", s)
	}
}

// Recorder receives streaming metrics.
type Recorder interface {
	AddBytes(backend string, n int)
	OpenFailed(backend string, cause string)
	Truncated(backend string)
}

type nopRecorder struct{}

func (nopRecorder) AddBytes(string, int)      {}
func (nopRecorder) OpenFailed(string, string) {}
func (nopRecorder) Truncated(string)          {}

// opened is what a backend hands back from a successful connect.
type opened struct {
	body io.Reader
	// size is the total remote size, or LengthUnknown when both probes failed.
	size    int64
	release func() error
}

type backend interface {
	name() string
	open(ctx context.Context, uri string, offset int64) (*opened, error)
	redact(uri string) string
}

type state int

const (
	stateFresh state = iota
	stateOpen
	stateClosed
)

// Session is a single-use byte stream over one remote file.
type Session struct {
	backend  backend
	fallback LengthFallback
	recorder Recorder
	logger   zerolog.Logger

	state     state
	uri       string
	start     int64
	bytesRead int64
	length    int64
	body      io.Reader
	release   func() error
}

func newSession(b backend, opts Options) *Session {
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	logger := opts.Logger
	if logger == nil {
		l := xglog.WithComponent("stream")
		logger = &l
	}
	return &Session{
		backend:  b,
		fallback: opts.Fallback,
		recorder: rec,
		logger:   logger.With().Str(xglog.FieldBackend, b.name()).Logger(),
		length:   LengthUnknown,
	}
}

// Open connects to uri and positions the stream at offset. It returns the
// number of bytes that remain from offset, or LengthUnknown.
// On failure nothing stays acquired and the session is closed.
func (s *Session) Open(ctx context.Context, uri string, offset int64) (int64, error) {
	if s.state != stateFresh {
		return 0, ErrSessionReused
	}
	if offset < 0 {
		s.state = stateClosed
		return 0, fmt.Errorf("stream: negative offset %d", offset)
	}
	s.uri = uri
	s.start = offset
	s.bytesRead = offset

	o, err := s.backend.open(ctx, uri, offset)
	if err != nil {
		s.state = stateClosed
		s.openFailed(err)
		return 0, err
	}

	length := LengthUnknown
	if o.size != LengthUnknown {
		length = o.size - offset
		if length < 0 {
			length = 0
		}
	} else {
		switch s.fallback {
		case FallbackZero:
			length = 0
		case FallbackError:
			_ = o.release()
			s.state = stateClosed
			err := remotefs.NewError(remotefs.CauseLengthUnavailable, "probe", s.URI(), nil)
			s.openFailed(err)
			return 0, err
		}
	}

	s.body = o.body
	s.release = o.release
	s.length = length
	s.state = stateOpen

	s.logger.Debug().
		Str(xglog.FieldEvent, "stream.opened").
		Str(xglog.FieldURI, s.URI()).
		Int64(xglog.FieldOffset, offset).
		Int64(xglog.FieldLength, length).
		Msg("stream session opened")
	return length, nil
}

func (s *Session) openFailed(err error) {
	cause := remotefs.CauseOf(err)
	s.recorder.OpenFailed(s.backend.name(), string(cause))
	s.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "stream.open_failed").
		Str(xglog.FieldURI, s.URI()).
		Str(xglog.FieldCause, string(cause)).
		Msg("stream open failed")
}

// Read copies up to len(p) bytes. It returns io.EOF once the announced
// length is consumed, or on transport EOF when the length is unknown.
// A transport EOF before the announced length returns ErrTruncated.
func (s *Session) Read(p []byte) (int, error) {
	if s.state != stateOpen {
		return 0, ErrNotOpen
	}
	if len(p) == 0 {
		return 0, nil
	}

	want := len(p)
	if s.length != LengthUnknown {
		remaining := s.length - (s.bytesRead - s.start)
		if remaining <= 0 {
			return 0, io.EOF
		}
		if int64(want) > remaining {
			want = int(remaining)
		}
	}

	n, err := s.body.Read(p[:want])
	if n > 0 {
		s.bytesRead += int64(n)
		s.recorder.AddBytes(s.backend.name(), n)
		if errors.Is(err, io.EOF) {
			// Reported on the next call, where truncation is detected.
			err = nil
		}
		return n, err
	}

	switch {
	case errors.Is(err, io.EOF) && s.length != LengthUnknown:
		s.recorder.Truncated(s.backend.name())
		s.logger.Warn().
			Str(xglog.FieldEvent, "stream.truncated").
			Str(xglog.FieldURI, s.URI()).
			Int64("position", s.bytesRead).
			Int64(xglog.FieldLength, s.length).
			Msg("remote stream ended early")
		return 0, ErrTruncated
	case errors.Is(err, io.EOF):
		return 0, io.EOF
	case err != nil:
		return 0, fmt.Errorf("read %s: %w", s.URI(), err)
	}
	return 0, nil
}

// Close releases the stream and its connection. Repeated calls and calls
// after a failed Open return nil.
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	wasOpen := s.state == stateOpen
	s.state = stateClosed
	release := s.release
	s.release = nil
	s.body = nil
	if !wasOpen || release == nil {
		return nil
	}
	if err := release(); err != nil {
		s.logger.Debug().Err(err).Str(xglog.FieldEvent, "stream.close_error").Msg("release failed")
		return fmt.Errorf("close %s: %w", s.URI(), err)
	}
	return nil
}

// URI returns the locator of the session without credentials.
func (s *Session) URI() string {
	if s.uri == "" {
		return ""
	}
	return s.backend.redact(s.uri)
}

// Position is the absolute offset of the next byte to be read.
func (s *Session) Position() int64 { return s.bytesRead }

// Consumed is the number of bytes read since Open.
func (s *Session) Consumed() int64 { return s.bytesRead - s.start }

// Length is the value Open returned.
func (s *Session) Length() int64 { return s.length }

// Backend names the protocol backend.
func (s *Session) Backend() string { return s.backend.name() }
