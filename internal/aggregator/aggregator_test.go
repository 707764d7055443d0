// SPDX-License-Identifier: MIT

package aggregator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/timeofday"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	name     string
	typ      media.SourceType
	disabled bool
	videos   []string
	images   []string
	tod      map[string]media.TimeOfDay
	manifest media.Manifest

	prepareErr error
	mediaErr   error
	metaErr    error
	panics     bool
	block      bool

	uriIdentity bool
	inline      bool
}

func (f *fakeSource) Name() string           { return f.name }
func (f *fakeSource) Enabled() bool          { return !f.disabled }
func (f *fakeSource) Type() media.SourceType { return f.typ }
func (f *fakeSource) IdentityByURI() bool    { return f.uriIdentity }
func (f *fakeSource) CarriesMetadata() bool  { return f.inline }

func (f *fakeSource) Prepare(context.Context) error { return f.prepareErr }

func (f *fakeSource) FetchMedia(ctx context.Context) ([]media.Item, error) {
	if f.panics {
		panic("source exploded")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.mediaErr != nil {
		return nil, f.mediaErr
	}
	var out []media.Item
	for _, v := range f.videos {
		out = append(out, media.Item{URI: f.uri(v), Kind: media.KindVideo, Metadata: media.Metadata{TimeOfDay: f.tod[v]}})
	}
	for _, v := range f.images {
		out = append(out, media.Item{URI: f.uri(v), Kind: media.KindImage})
	}
	return out, nil
}

func (f *fakeSource) FetchMetadata(context.Context) (media.Manifest, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.manifest, nil
}

func (f *fakeSource) uri(name string) string {
	return "file:///" + f.name + "/" + name
}

func manifestFor(names ...string) media.Manifest {
	m := media.Manifest{}
	for _, n := range names {
		m.Add(n, media.ManifestEntry{Description: "About " + n, POI: map[int]string{0: n}})
	}
	return m
}

func plain() Options {
	return Options{ManifestDescriptions: true}
}

func uris(items []media.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.URI
	}
	return out
}

func newAgg(sources ...media.Source) *Aggregator {
	return New(sources, WithLogger(zerolog.Nop()))
}

func TestRunConcreteScenario(t *testing.T) {
	local := &fakeSource{name: "local", typ: media.Local, videos: []string{"a.mp4", "b.mp4"}}
	share := &fakeSource{name: "smb", typ: media.Local, videos: []string{"b.mp4", "c.mp4"}}
	manifest := &fakeSource{name: "apple", typ: media.Remote, manifest: manifestFor("b.mov", "c.mov")}

	opts := plain()
	opts.RemoveDuplicates = true
	opts.IgnoreNonManifestVideos = true

	pl, report := newAgg(local, share, manifest).Run(context.Background(), opts)

	assert.Equal(t, []string{"file:///local/b.mp4", "file:///smb/c.mp4"}, uris(pl.Items()))
	assert.Equal(t, 1, report.DuplicatesRemoved)
	assert.Equal(t, 1, report.DroppedUnmatched)
	assert.Equal(t, 2, report.Matched)

	first, err := pl.Next()
	require.NoError(t, err)
	assert.True(t, first.Matched)
	assert.Equal(t, "About b.mov", first.Metadata.Description)
	assert.Equal(t, "local", first.SourceTag)
}

func TestRunIsolation(t *testing.T) {
	good := &fakeSource{name: "local", typ: media.Local, videos: []string{"a.mp4", "b.mp4"}, images: []string{"x.jpg"}}
	meta := &fakeSource{name: "apple", typ: media.Remote, manifest: manifestFor("a")}

	broken := []*fakeSource{
		{name: "err", typ: media.Local, mediaErr: errors.New("connection refused")},
		{name: "panic", typ: media.Remote, panics: true},
		{name: "prepare", typ: media.Local, prepareErr: errors.New("no permission"), videos: []string{"z.mp4"}},
		{name: "meta", typ: media.Remote, metaErr: errors.New("bad json"), manifest: manifestFor("b")},
	}

	baseline, _ := newAgg(good, meta).Run(context.Background(), plain())

	sources := []media.Source{good, meta}
	for _, b := range broken {
		sources = append(sources, b)
	}
	got, report := newAgg(sources...).Run(context.Background(), plain())

	if diff := cmp.Diff(baseline.Items(), got.Items()); diff != "" {
		t.Errorf("failing sources changed the result (-want +got):\n%s", diff)
	}
	assert.ElementsMatch(t, []string{"err", "panic", "prepare", "meta"}, report.Failed())

	for _, s := range report.Sources {
		if s.Name == "panic" {
			assert.Contains(t, s.MediaError, "source exploded")
		}
	}
}

func TestRunDedupKeepsLocal(t *testing.T) {
	remote := &fakeSource{name: "remote", typ: media.Remote, videos: []string{"B.mp4", "c.mp4"}}
	local := &fakeSource{name: "local", typ: media.Local, videos: []string{"a.mp4", "b.mp4"}}

	opts := plain()
	opts.RemoveDuplicates = true
	pl, _ := newAgg(remote, local).Run(context.Background(), opts)

	assert.Equal(t, []string{"file:///local/a.mp4", "file:///local/b.mp4", "file:///remote/c.mp4"}, uris(pl.Items()))
}

func TestRunDedupByURI(t *testing.T) {
	photos := &fakeSource{name: "immich", typ: media.Remote, uriIdentity: true, images: []string{"1/original.jpg", "2/original.jpg", "1/original.jpg"}}
	local := &fakeSource{name: "local", typ: media.Local, images: []string{"original.jpg"}}

	opts := plain()
	opts.RemoveDuplicates = true
	pl, report := newAgg(photos, local).Run(context.Background(), opts)

	assert.Equal(t, []string{
		"file:///local/original.jpg",
		"file:///immich/1/original.jpg",
		"file:///immich/2/original.jpg",
	}, uris(pl.Items()))
	assert.Equal(t, 1, report.DuplicatesRemoved)
}

func TestRunDedupDisabled(t *testing.T) {
	a := &fakeSource{name: "a", typ: media.Local, videos: []string{"x.mp4"}}
	b := &fakeSource{name: "b", typ: media.Local, videos: []string{"x.mp4"}}

	pl, _ := newAgg(a, b).Run(context.Background(), plain())
	assert.Equal(t, 2, pl.Size())
}

func TestRunReassemblyOrder(t *testing.T) {
	local := &fakeSource{
		name: "local", typ: media.Local,
		videos: []string{"m1.mp4", "u1.mp4", "m2.mp4", "u2.mp4"},
		images: []string{"photo.jpg", "m3.jpg"},
	}
	photos := &fakeSource{name: "immich", typ: media.Remote, inline: true, images: []string{"album.jpg"}}
	meta := &fakeSource{name: "apple", typ: media.Remote, manifest: manifestFor("m1", "m2", "m3")}

	pl, _ := newAgg(photos, meta, local).Run(context.Background(), plain())

	assert.Equal(t, []string{
		"file:///local/u1.mp4",
		"file:///local/u2.mp4",
		"file:///local/m1.mp4",
		"file:///local/m2.mp4",
		"file:///local/photo.jpg",
		"file:///local/m3.jpg",
		"file:///immich/album.jpg",
	}, uris(pl.Items()))
}

func TestRunManifestDescriptionsToggle(t *testing.T) {
	local := &fakeSource{name: "local", typ: media.Local, videos: []string{"b.mp4"}}
	meta := &fakeSource{name: "apple", typ: media.Remote, manifest: media.Manifest{
		"b": {Description: "Bridge", POI: map[int]string{0: "Bridge"}, TimeOfDay: media.Night},
	}}

	opts := plain()
	opts.ManifestDescriptions = false
	pl, _ := newAgg(local, meta).Run(context.Background(), opts)

	item, err := pl.Peek()
	require.NoError(t, err)
	assert.True(t, item.Matched)
	assert.Empty(t, item.Metadata.Description)
	assert.Nil(t, item.Metadata.POI)
	assert.Equal(t, media.Night, item.Metadata.TimeOfDay)
}

func TestRunManifestLastWriteWins(t *testing.T) {
	local := &fakeSource{name: "local", typ: media.Local, videos: []string{"b.mp4"}}
	first := &fakeSource{name: "one", typ: media.Remote, manifest: media.Manifest{"b": {Description: "first"}}}
	second := &fakeSource{name: "two", typ: media.Remote, manifest: media.Manifest{"b": {Description: "second"}}}

	pl, _ := newAgg(local, first, second).Run(context.Background(), plain())
	item, err := pl.Peek()
	require.NoError(t, err)
	assert.Equal(t, "second", item.Metadata.Description)
}

func TestRunFilenameDescriptions(t *testing.T) {
	local := &fakeSource{name: "local", typ: media.Local}
	local.videos = []string{"Holidays/beach_day.mp4"}
	local.images = []string{"Summer Photos/family-and-friends.jpg"}

	opts := plain()
	opts.VideoDescription = DescriptionFilename
	opts.PhotoDescription = DescriptionFolderName
	opts.DescriptionDepth = 1
	pl, _ := newAgg(local).Run(context.Background(), opts)

	items := pl.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Beach Day", items[0].Metadata.Description)
	assert.Equal(t, "Summer Photos", items[1].Metadata.Description)
}

func TestRunTimeOfDaySafetyNet(t *testing.T) {
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	local := &fakeSource{
		name: "local", typ: media.Local,
		videos: []string{"n1.mp4", "n2.mp4"},
		images: []string{"p.jpg"},
		tod:    map[string]media.TimeOfDay{"n1.mp4": media.Night, "n2.mp4": media.Night},
	}

	rec := &recorder{}
	agg := New([]media.Source{local}, WithLogger(zerolog.Nop()), WithClock(func() time.Time { return noon }), WithMetrics(rec))

	opts := plain()
	opts.AutoTimeOfDay = true
	opts.HasLocation = true
	opts.Latitude, opts.Longitude = 51.5074, -0.1278

	pl, report := agg.Run(context.Background(), opts)
	assert.Equal(t, 3, pl.Size())
	assert.True(t, report.SafetyNet)
	assert.Equal(t, timeofday.Day.String(), report.Period)
	assert.Equal(t, int32(1), rec.safetyNet.Load())
}

func TestRunTimeOfDayFilters(t *testing.T) {
	midnight := time.Date(2024, 12, 21, 0, 30, 0, 0, time.UTC)
	local := &fakeSource{
		name: "local", typ: media.Local,
		videos: []string{"day.mp4", "night.mp4", "dusk.mp4", "any.mp4"},
		tod:    map[string]media.TimeOfDay{"day.mp4": media.Day, "night.mp4": media.Night, "dusk.mp4": media.Sunset},
	}

	agg := New([]media.Source{local}, WithLogger(zerolog.Nop()), WithClock(func() time.Time { return midnight }))
	opts := plain()
	opts.AutoTimeOfDay = true
	opts.HasLocation = true
	opts.Latitude, opts.Longitude = 51.5074, -0.1278
	opts.TimePolicy = timeofday.Policy{NightIncludesSunset: true}

	pl, report := agg.Run(context.Background(), opts)
	assert.Equal(t, []string{"file:///local/night.mp4", "file:///local/dusk.mp4", "file:///local/any.mp4"}, uris(pl.Items()))
	assert.False(t, report.SafetyNet)
}

func TestRunShuffleIsPermutation(t *testing.T) {
	local := &fakeSource{name: "local", typ: media.Local, videos: []string{"1.mp4", "2.mp4", "3.mp4", "4.mp4", "5.mp4", "6.mp4"}}
	opts := plain()

	ordered, _ := newAgg(local).Run(context.Background(), opts)

	opts.Shuffle = true
	agg := New([]media.Source{local}, WithLogger(zerolog.Nop()), WithRand(rand.New(rand.NewPCG(1, 2))))
	shuffled, _ := agg.Run(context.Background(), opts)

	assert.ElementsMatch(t, uris(ordered.Items()), uris(shuffled.Items()))

	again, _ := New([]media.Source{local}, WithLogger(zerolog.Nop()), WithRand(rand.New(rand.NewPCG(1, 2)))).Run(context.Background(), opts)
	assert.Equal(t, uris(shuffled.Items()), uris(again.Items()), "same seed gives the same order")
}

func TestRunEmpty(t *testing.T) {
	disabled := &fakeSource{name: "local", typ: media.Local, disabled: true, videos: []string{"a.mp4"}}
	empty := &fakeSource{name: "remote", typ: media.Remote}

	pl, report := newAgg(disabled, empty).Run(context.Background(), plain())
	assert.Equal(t, 0, pl.Size())
	assert.Len(t, report.Sources, 1)

	pl, _ = newAgg().Run(context.Background(), plain())
	assert.Equal(t, 0, pl.Size())
}

func TestRunFetchTimeout(t *testing.T) {
	slow := &fakeSource{name: "slow", typ: media.Remote, block: true}
	fast := &fakeSource{name: "fast", typ: media.Local, videos: []string{"a.mp4"}}

	opts := plain()
	opts.FetchTimeout = 50 * time.Millisecond

	start := time.Now()
	pl, report := newAgg(slow, fast).Run(context.Background(), opts)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, pl.Size())
	assert.Equal(t, []string{"slow"}, report.Failed())
}

type countingSource struct {
	fakeSource
	active *atomic.Int32
	peak   *atomic.Int32
}

func (c *countingSource) FetchMedia(ctx context.Context) ([]media.Item, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return c.fakeSource.FetchMedia(ctx)
}

func TestRunConcurrencyLimit(t *testing.T) {
	var active, peak atomic.Int32
	var sources []media.Source
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		sources = append(sources, &countingSource{
			fakeSource: fakeSource{name: name, typ: media.Local, videos: []string{name + ".mp4"}},
			active:     &active,
			peak:       &peak,
		})
	}

	opts := plain()
	opts.Concurrency = 2
	pl, _ := newAgg(sources...).Run(context.Background(), opts)

	assert.Equal(t, 5, pl.Size())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, []string{"file:///a/a.mp4", "file:///b/b.mp4", "file:///c/c.mp4", "file:///d/d.mp4", "file:///e/e.mp4"}, uris(pl.Items()))
}

type recorder struct {
	mu        sync.Mutex
	failed    []string
	dups      int
	runs      int
	safetyNet atomic.Int32
}

func (r *recorder) RunFinished(time.Duration, int, int) { r.mu.Lock(); r.runs++; r.mu.Unlock() }
func (r *recorder) SourceFailed(source, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, source+"/"+stage)
}
func (r *recorder) SourceItems(string, int) {}
func (r *recorder) DuplicatesRemoved(n int) { r.mu.Lock(); r.dups += n; r.mu.Unlock() }
func (r *recorder) SafetyNet()              { r.safetyNet.Add(1) }

func TestRunRecordsMetrics(t *testing.T) {
	rec := &recorder{}
	local := &fakeSource{name: "local", typ: media.Local, videos: []string{"a.mp4", "a.mp4"}}
	broken := &fakeSource{name: "feed", typ: media.Remote, prepareErr: errors.New("dns")}
	meta := &fakeSource{name: "apple", typ: media.Remote, metaErr: errors.New("timeout")}

	opts := plain()
	opts.RemoveDuplicates = true
	New([]media.Source{local, broken, meta}, WithLogger(zerolog.Nop()), WithMetrics(rec)).Run(context.Background(), opts)

	assert.ElementsMatch(t, []string{"feed/prepare", "apple/metadata"}, rec.failed)
	assert.Equal(t, 1, rec.dups)
	assert.Equal(t, 1, rec.runs)
}

func TestParseDescriptionStyle(t *testing.T) {
	for _, s := range []DescriptionStyle{DescriptionDisabled, DescriptionFilename, DescriptionFolderAndFilename, DescriptionFolderName} {
		got, err := ParseDescriptionStyle(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseDescriptionStyle("full_path")
	assert.Error(t, err)
}
