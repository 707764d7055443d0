// SPDX-License-Identifier: MIT

package media

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	videoExtensions = []string{".mov", ".mp4", ".m4v", ".webm", ".mkv", ".ts"}
	imageExtensions = []string{".jpg", ".jpeg", ".gif", ".webp", ".heic", ".png", ".avif"}
)

// pathOf returns the decoded path component of uri, or uri itself when it
// does not parse as a URL.
func pathOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme == "" && u.Host == "" && u.Path == "") {
		return uri
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}

func segments(uri string) []string {
	var out []string
	for _, s := range strings.Split(pathOf(uri), "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FilenameOf returns the last path segment of uri.
func FilenameOf(uri string) string {
	segs := segments(uri)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// FilenameWithoutExtension strips the final extension from the filename of uri.
func FilenameWithoutExtension(uri string) string {
	name := FilenameOf(uri)
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// DedupKey is the lower-cased filename with extension.
func DedupKey(uri string) string {
	return strings.ToLower(FilenameOf(uri))
}

// MatchKey is the lower-cased filename without extension.
func MatchKey(uri string) string {
	return strings.ToLower(FilenameWithoutExtension(uri))
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// IsVideo reports whether name has a supported video extension.
func IsVideo(name string) bool { return hasExt(name, videoExtensions) }

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool { return hasExt(name, imageExtensions) }

// KindOf classifies name by extension.
func KindOf(name string) (Kind, bool) {
	switch {
	case IsVideo(name):
		return KindVideo, true
	case IsImage(name):
		return KindImage, true
	default:
		return 0, false
	}
}

// IsHidden reports dot files and dot folders.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// InFolder reports whether uri lives below a folder named folder.
// An empty folder matches everything.
func InFolder(uri, folder string) bool {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return true
	}
	if !strings.HasPrefix(folder, "/") {
		folder = "/" + folder
	}
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	return strings.Contains(strings.ToLower(pathOf(uri)), strings.ToLower(folder))
}

// TitleCase turns "city-place_video" into "City - Place Video".
func TitleCase(name string) string {
	name = strings.ReplaceAll(name, "-", ".-.")
	name = strings.ReplaceAll(name, "_", ".")
	// A Caser keeps state, so each call gets its own.
	caser := cases.Title(language.Und)
	var words []string
	for _, w := range strings.Split(name, ".") {
		if w == "" {
			continue
		}
		words = append(words, caser.String(w))
	}
	return strings.Join(words, " ")
}

// FolderAndFilename builds a title-cased description from the parent
// folders of uri. depth is the number of folders to include, closest last;
// values below 1 mean one folder.
func FolderAndFilename(uri string, includeFilename bool, depth int) string {
	if depth < 1 {
		depth = 1
	}
	segs := segments(uri)
	var folders []string
	if len(segs) >= 2 {
		dirs := segs[:len(segs)-1]
		if len(dirs) > depth {
			dirs = dirs[len(dirs)-depth:]
		}
		for _, d := range dirs {
			folders = append(folders, TitleCase(d))
		}
	}
	if includeFilename {
		folders = append(folders, TitleCase(FilenameWithoutExtension(uri)))
	}
	return strings.Join(folders, " / ")
}
