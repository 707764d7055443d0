// SPDX-License-Identifier: MIT

package aggregator

import (
	"fmt"
	"strings"
	"time"

	"github.com/theothernt/AerialViews-sub000/internal/timeofday"
)

// DescriptionStyle controls the description given to items that are left
// without one after manifest matching.
type DescriptionStyle int

const (
	DescriptionDisabled DescriptionStyle = iota
	// DescriptionFilename uses the filename without extension.
	DescriptionFilename
	// DescriptionFolderAndFilename renders "Folder / File Name".
	DescriptionFolderAndFilename
	// DescriptionFolderName renders the enclosing folders only.
	DescriptionFolderName
)

func (s DescriptionStyle) String() string {
	switch s {
	case DescriptionFilename:
		return "filename"
	case DescriptionFolderAndFilename:
		return "folder_filename"
	case DescriptionFolderName:
		return "folder_name"
	default:
		return "disabled"
	}
}

// ParseDescriptionStyle accepts the String forms. Empty means disabled.
func ParseDescriptionStyle(s string) (DescriptionStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled":
		return DescriptionDisabled, nil
	case "filename":
		return DescriptionFilename, nil
	case "folder_filename":
		return DescriptionFolderAndFilename, nil
	case "folder_name":
		return DescriptionFolderName, nil
	default:
		return DescriptionDisabled, fmt.Errorf("unknown description style %q (supported: disabled, filename, folder_filename, folder_name)", s)
	}
}

// Options is the read-only configuration snapshot of one run.
type Options struct {
	RemoveDuplicates        bool
	Shuffle                 bool
	IgnoreNonManifestVideos bool
	AutoTimeOfDay           bool
	TimePolicy              timeofday.Policy

	HasLocation bool
	Latitude    float64
	Longitude   float64

	// ManifestDescriptions copies manifest description and POI into matched
	// items. Matching itself happens regardless.
	ManifestDescriptions bool
	VideoDescription     DescriptionStyle
	PhotoDescription     DescriptionStyle
	DescriptionDepth     int

	// FetchTimeout bounds prepare+fetch of each source. Zero means unbounded.
	FetchTimeout time.Duration
	// Concurrency limits the fan-out. Zero runs every source at once.
	Concurrency int
}

// DefaultOptions mirrors the defaults of the configuration file.
func DefaultOptions() Options {
	return Options{
		RemoveDuplicates:     true,
		Shuffle:              true,
		ManifestDescriptions: true,
		DescriptionDepth:     1,
	}
}
