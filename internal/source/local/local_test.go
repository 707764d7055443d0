// SPDX-License-Identifier: MIT

package local

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	return root
}

func names(items []media.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, media.FilenameOf(it.URI))
	}
	sort.Strings(out)
	return out
}

func TestFetchMedia(t *testing.T) {
	root := writeTree(t,
		"a.mov", "b.jpg", "notes.txt", ".hidden.mp4",
		"sub/c.mp4", "sub/d.png",
		".trash/e.mov",
		"Aerials/f.mkv",
	)

	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "videos top level",
			cfg:  Config{MediaType: source.MediaVideos},
			want: []string{"a.mov"},
		},
		{
			name: "videos recursive",
			cfg:  Config{MediaType: source.MediaVideos, SearchSubfolders: true},
			want: []string{"a.mov", "c.mp4", "f.mkv"},
		},
		{
			name: "photos recursive",
			cfg:  Config{MediaType: source.MediaPhotos, SearchSubfolders: true},
			want: []string{"b.jpg", "d.png"},
		},
		{
			name: "both recursive",
			cfg:  Config{MediaType: source.MediaBoth, SearchSubfolders: true},
			want: []string{"a.mov", "b.jpg", "c.mp4", "d.png", "f.mkv"},
		},
		{
			name: "folder filter",
			cfg:  Config{MediaType: source.MediaBoth, SearchSubfolders: true, Folder: "aerials"},
			want: []string{"f.mkv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Enabled = true
			tt.cfg.Roots = []string{root}
			src := New(tt.cfg, zerolog.Nop())
			require.NoError(t, src.Prepare(context.Background()))

			items, err := src.FetchMedia(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(items))
		})
	}
}

func TestItemsCarryKindAndFileURI(t *testing.T) {
	root := writeTree(t, "clip.mov", "pic.jpg")
	src := New(Config{Enabled: true, Roots: []string{root}, MediaType: source.MediaBoth}, zerolog.Nop())

	items, err := src.FetchMedia(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Contains(t, it.URI, "file://")
		want := media.KindVideo
		if media.IsImage(it.URI) {
			want = media.KindImage
		}
		assert.Equal(t, want, it.Kind, it.URI)
	}
}

func TestPrepare(t *testing.T) {
	t.Run("no roots", func(t *testing.T) {
		err := New(Config{Enabled: true}, zerolog.Nop()).Prepare(context.Background())
		assert.ErrorIs(t, err, source.ErrNotConfigured)
	})

	t.Run("missing root", func(t *testing.T) {
		src := New(Config{Roots: []string{filepath.Join(t.TempDir(), "gone")}}, zerolog.Nop())
		assert.Error(t, src.Prepare(context.Background()))
	})

	t.Run("one usable root is enough", func(t *testing.T) {
		src := New(Config{Roots: []string{"/does/not/exist", t.TempDir()}}, zerolog.Nop())
		assert.NoError(t, src.Prepare(context.Background()))
	})
}

func TestMissingRootIsSkipped(t *testing.T) {
	root := writeTree(t, "a.mov")
	src := New(Config{Roots: []string{"/does/not/exist", root}}, zerolog.Nop())

	items, err := src.FetchMedia(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mov"}, names(items))
}

func TestCancelledContext(t *testing.T) {
	root := writeTree(t, "a.mov")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{Roots: []string{root}}, zerolog.Nop()).FetchMedia(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentity(t *testing.T) {
	src := New(Config{Enabled: true}, zerolog.Nop())
	assert.Equal(t, "local", src.Name())
	assert.Equal(t, media.Local, src.Type())
	assert.True(t, src.Enabled())

	meta, err := src.FetchMetadata(context.Background())
	require.NoError(t, err)
	assert.Empty(t, meta)
}
