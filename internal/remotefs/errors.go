// SPDX-License-Identifier: MIT

// Package remotefs holds the connection plumbing shared by the SMB and
// WebDAV sources and streaming backends, including a failure taxonomy that
// tells connection problems apart for diagnostics.
package remotefs

import (
	"errors"
	"fmt"
)

// Cause identifies which stage of a remote access failed.
type Cause string

const (
	CauseHostUnreachable   Cause = "host_unreachable"
	CauseAuthRejected      Cause = "auth_rejected"
	CauseShareNotFound     Cause = "share_not_found"
	CausePathNotFound      Cause = "path_not_found"
	CauseLengthUnavailable Cause = "length_unavailable"
	CauseUnknown           Cause = "unknown"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrHostUnreachable   = errors.New("remote: host unreachable")
	ErrAuthRejected      = errors.New("remote: authentication rejected")
	ErrShareNotFound     = errors.New("remote: share not found")
	ErrPathNotFound      = errors.New("remote: path not found")
	ErrLengthUnavailable = errors.New("remote: content length unavailable")
	ErrRemote            = errors.New("remote: request failed")
)

var sentinels = map[Cause]error{
	CauseHostUnreachable:   ErrHostUnreachable,
	CauseAuthRejected:      ErrAuthRejected,
	CauseShareNotFound:     ErrShareNotFound,
	CausePathNotFound:      ErrPathNotFound,
	CauseLengthUnavailable: ErrLengthUnavailable,
	CauseUnknown:           ErrRemote,
}

// Error wraps a protocol failure with the stage that produced it.
type Error struct {
	Cause  Cause
	Op     string
	Target string // redacted locator
	Err    error
}

// NewError builds an Error. A nil err is allowed when the sentinel says it all.
func NewError(cause Cause, op, target string, err error) *Error {
	return &Error{Cause: cause, Op: op, Target: target, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.sentinel())
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) sentinel() error {
	if s, ok := sentinels[e.Cause]; ok {
		return s
	}
	return ErrRemote
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// CauseOf returns the failure cause carried by err, or CauseUnknown.
func CauseOf(err error) Cause {
	var re *Error
	if errors.As(err, &re) {
		return re.Cause
	}
	return CauseUnknown
}
