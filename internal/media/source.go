// SPDX-License-Identifier: MIT

package media

import "context"

// SourceType orders sources for dedup: LOCAL content wins over REMOTE.
type SourceType int

const (
	Local SourceType = iota
	Remote
)

func (t SourceType) String() string {
	if t == Remote {
		return "remote"
	}
	return "local"
}

// Source is a pluggable origin of media items.
//
// Implementations may return errors or even panic; the aggregator isolates
// each call so one failing source never affects the others.
type Source interface {
	Name() string
	Enabled() bool
	Type() SourceType
	Prepare(ctx context.Context) error
	FetchMedia(ctx context.Context) ([]Item, error)
	FetchMetadata(ctx context.Context) (Manifest, error)
}

// URIIdentity is implemented by sources whose filenames are not unique or
// stable. Items from such sources are deduplicated by full URI.
type URIIdentity interface {
	IdentityByURI() bool
}

// InlineMetadata is implemented by sources whose images already carry
// descriptive metadata.
type InlineMetadata interface {
	CarriesMetadata() bool
}

// IdentityByURI reports whether s opted into URI-based identity.
func IdentityByURI(s Source) bool {
	if v, ok := s.(URIIdentity); ok {
		return v.IdentityByURI()
	}
	return false
}

// CarriesMetadata reports whether s supplies metadata with its images.
func CarriesMetadata(s Source) bool {
	if v, ok := s.(InlineMetadata); ok {
		return v.CarriesMetadata()
	}
	return false
}
