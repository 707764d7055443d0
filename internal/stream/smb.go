// SPDX-License-Identifier: MIT

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/remotefs"
)

type smbBackend struct {
	dialer remotefs.SMBDialer
}

// NewSMBSession returns an unopened session for smb:// locators.
func NewSMBSession(dialer remotefs.SMBDialer, opts Options) *Session {
	return newSession(&smbBackend{dialer: dialer}, opts)
}

func (b *smbBackend) name() string { return "smb" }

func (b *smbBackend) redact(uri string) string { return xglog.RedactURI(uri) }

func (b *smbBackend) open(ctx context.Context, uri string, offset int64) (*opened, error) {
	t, err := remotefs.ParseSMBURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	if t.Path == "" {
		return nil, remotefs.NewError(remotefs.CausePathNotFound, "open", t.Redacted(), errors.New("no file in locator"))
	}

	m, err := remotefs.MountShare(ctx, b.dialer, t)
	if err != nil {
		return nil, err
	}

	f, err := m.Share.Open(t.Path)
	if err != nil {
		_ = m.Release()
		return nil, remotefs.ClassifySMB("open", t.Redacted(), err)
	}

	release := func() error {
		return errors.Join(f.Close(), m.Release())
	}

	size, seeked, err := smbSize(f)
	if err != nil {
		_ = release()
		return nil, remotefs.NewError(remotefs.CausePathNotFound, "stat", t.Redacted(), err)
	}

	if offset > 0 || seeked {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = release()
			return nil, remotefs.ClassifySMB("seek", t.Redacted(), err)
		}
	}

	return &opened{body: f, size: size, release: release}, nil
}

var errIsDirectory = errors.New("locator names a directory")

// smbSize probes the file size with Stat, then by seeking to the end.
// seeked reports whether the file position was moved.
func smbSize(f remotefs.SMBFile) (size int64, seeked bool, err error) {
	if fi, statErr := f.Stat(); statErr == nil {
		if fi.IsDir() {
			return 0, false, errIsDirectory
		}
		return fi.Size(), false, nil
	}
	end, seekErr := f.Seek(0, io.SeekEnd)
	if seekErr != nil {
		return LengthUnknown, true, nil
	}
	return end, true, nil
}
