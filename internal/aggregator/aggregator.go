// SPDX-License-Identifier: MIT

// Package aggregator turns a set of content sources into one playlist:
// fetch in parallel, deduplicate, match manifest metadata, filter by time
// of day and shuffle.
package aggregator

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/playlist"
	"github.com/theothernt/AerialViews-sub000/internal/telemetry"
	"github.com/theothernt/AerialViews-sub000/internal/timeofday"
)

// Recorder receives run metrics.
type Recorder interface {
	RunFinished(d time.Duration, videos, images int)
	SourceFailed(source, stage string)
	SourceItems(source string, n int)
	DuplicatesRemoved(n int)
	SafetyNet()
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(time.Duration, int, int) {}
func (nopRecorder) SourceFailed(string, string)         {}
func (nopRecorder) SourceItems(string, int)             {}
func (nopRecorder) DuplicatesRemoved(int)               {}
func (nopRecorder) SafetyNet()                          {}

// Aggregator holds the sources and collaborators. It keeps no state between runs.
type Aggregator struct {
	sources []media.Source
	now     func() time.Time
	metrics Recorder
	logger  zerolog.Logger
	tracer  trace.Tracer

	randMu sync.Mutex
	rand   *rand.Rand
}

// Option configures an Aggregator.
type Option func(*Aggregator)

func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

// WithRand sets the shuffle source.
func WithRand(r *rand.Rand) Option { return func(a *Aggregator) { a.rand = r } }

func WithMetrics(r Recorder) Option { return func(a *Aggregator) { a.metrics = r } }

func WithLogger(l zerolog.Logger) Option { return func(a *Aggregator) { a.logger = l } }

func WithTracer(t trace.Tracer) Option { return func(a *Aggregator) { a.tracer = t } }

// New creates an aggregator over sources. The slice is copied.
func New(sources []media.Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources: append([]media.Source(nil), sources...),
		now:     time.Now,
		metrics: nopRecorder{},
		logger:  xglog.WithComponent("aggregator"),
		tracer:  telemetry.Tracer("aerialviews/aggregator"),
		rand:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SourceReport is the outcome of one source in a run.
type SourceReport struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Items         int    `json:"items"`
	Entries       int    `json:"manifest_entries"`
	MediaError    string `json:"media_error,omitempty"`
	MetadataError string `json:"metadata_error,omitempty"`
}

// Report describes a run stage by stage.
type Report struct {
	RunID             string         `json:"run_id"`
	Started           time.Time      `json:"started"`
	Duration          time.Duration  `json:"duration_ns"`
	Sources           []SourceReport `json:"sources"`
	Fetched           int            `json:"fetched"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	Matched           int            `json:"matched"`
	DroppedUnmatched  int            `json:"dropped_unmatched"`
	Period            string         `json:"period"`
	SafetyNet         bool           `json:"safety_net"`
	Videos            int            `json:"videos"`
	Images            int            `json:"images"`
}

// Failed lists the sources that reported a media or metadata error.
func (r Report) Failed() []string {
	var out []string
	for _, s := range r.Sources {
		if s.MediaError != "" || s.MetadataError != "" {
			out = append(out, s.Name)
		}
	}
	return out
}

// Run executes one aggregation. It never fails: sources that error out
// contribute nothing and the worst outcome is an empty playlist.
func (a *Aggregator) Run(ctx context.Context, opts Options) (*playlist.Playlist, Report) {
	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithContext(ctx, a.logger)

	ctx, span := a.tracer.Start(ctx, "aggregator.run")
	defer span.End()

	started := a.now()
	report := Report{RunID: runID, Started: started, Period: timeofday.Unknown.String()}

	// 1. enabled sources, LOCAL before REMOTE
	sources := enabled(a.sources)
	report.Sources = make([]SourceReport, len(sources))
	for i, s := range sources {
		report.Sources[i] = SourceReport{Name: s.Name(), Type: s.Type().String()}
	}

	// 2-3. fan-out fetch, concatenate in source order
	slots := a.fetchMedia(ctx, sources, opts, logger)
	var all []media.Item
	for i, slot := range slots {
		if slot.err != nil {
			report.Sources[i].MediaError = slot.err.Error()
		}
		report.Sources[i].Items = len(slot.items)
		a.metrics.SourceItems(sources[i].Name(), len(slot.items))
		all = append(all, slot.items...)
	}
	report.Fetched = len(all)

	// 4. partition
	videos, images := partition(all)

	// 5. dedup
	if opts.RemoveDuplicates {
		uriIdentity := make(map[string]bool, len(sources))
		for _, s := range sources {
			uriIdentity[s.Name()] = media.IdentityByURI(s)
		}
		var removed int
		videos, removed = dedup(videos, uriIdentity)
		report.DuplicatesRemoved += removed
		images, removed = dedup(images, uriIdentity)
		report.DuplicatesRemoved += removed
		a.metrics.DuplicatesRemoved(report.DuplicatesRemoved)
	}

	// 6. metadata
	manifest := media.Manifest{}
	for i, slot := range a.fetchMetadata(ctx, sources, opts, logger) {
		if slot.err != nil {
			report.Sources[i].MetadataError = slot.err.Error()
		}
		report.Sources[i].Entries = len(slot.manifest)
		manifest.Merge(slot.manifest)
	}
	report.Matched = match(videos, manifest, opts.ManifestDescriptions) + match(images, manifest, opts.ManifestDescriptions)

	// 7. split images by whether their source carries metadata
	inline := make(map[string]bool, len(sources))
	for _, s := range sources {
		inline[s.Name()] = media.CarriesMetadata(s)
	}
	var plainImages, metaImages []media.Item
	for _, it := range images {
		if inline[it.SourceTag] {
			metaImages = append(metaImages, it)
		} else {
			plainImages = append(plainImages, it)
		}
	}

	var matchedVideos, unmatchedVideos []media.Item
	for _, it := range videos {
		if it.Matched {
			matchedVideos = append(matchedVideos, it)
		} else {
			unmatchedVideos = append(unmatchedVideos, it)
		}
	}

	// 8. drop unmatched videos
	if opts.IgnoreNonManifestVideos {
		report.DroppedUnmatched = len(unmatchedVideos)
		unmatchedVideos = nil
	}
	describe(unmatchedVideos, opts.VideoDescription, opts.DescriptionDepth)
	describe(plainImages, opts.PhotoDescription, opts.DescriptionDepth)

	// 9. reassemble
	items := make([]media.Item, 0, len(unmatchedVideos)+len(matchedVideos)+len(plainImages)+len(metaImages))
	items = append(items, unmatchedVideos...)
	items = append(items, matchedVideos...)
	items = append(items, plainImages...)
	items = append(items, metaImages...)

	// 10. time of day
	if opts.AutoTimeOfDay {
		period := timeofday.Classify(opts.Latitude, opts.Longitude, opts.HasLocation, a.now())
		report.Period = period.String()
		var rescued bool
		items, rescued = timeofday.Filter(items, period, opts.TimePolicy, logger)
		if rescued {
			report.SafetyNet = true
			a.metrics.SafetyNet()
		}
	}

	// 11. shuffle
	if opts.Shuffle {
		a.shuffle(items)
	}

	for _, it := range items {
		if it.Kind == media.KindVideo {
			report.Videos++
		} else {
			report.Images++
		}
	}
	report.Duration = a.now().Sub(started)
	a.metrics.RunFinished(report.Duration, report.Videos, report.Images)

	span.SetAttributes(telemetry.AggregationAttributes(runID, len(sources), report.Videos, report.Images, report.DuplicatesRemoved)...)
	span.SetAttributes(attribute.String(telemetry.PeriodKey, report.Period), attribute.Bool(telemetry.SafetyNetKey, report.SafetyNet))

	event := logger.Info()
	if len(items) == 0 {
		event = logger.Warn()
	}
	event.
		Str(xglog.FieldEvent, "aggregate.done").
		Int("sources", len(sources)).
		Int("fetched", report.Fetched).
		Int("duplicates", report.DuplicatesRemoved).
		Int("matched", report.Matched).
		Int("videos", report.Videos).
		Int("images", report.Images).
		Strs("failed", report.Failed()).
		Dur("duration", report.Duration).
		Msg("aggregation finished")

	// 12.
	return playlist.New(items), report
}

func enabled(sources []media.Source) []media.Source {
	out := make([]media.Source, 0, len(sources))
	for _, s := range sources {
		if s != nil && s.Enabled() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type() == media.Local && out[j].Type() == media.Remote
	})
	return out
}

func partition(items []media.Item) (videos, images []media.Item) {
	for _, it := range items {
		if it.Kind == media.KindVideo {
			videos = append(videos, it)
		} else {
			images = append(images, it)
		}
	}
	return videos, images
}

// dedup keeps the first item per key. uriIdentity maps a source tag to
// whether its items are keyed by full URI.
func dedup(items []media.Item, uriIdentity map[string]bool) ([]media.Item, int) {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		key := media.DedupKey(it.URI)
		if uriIdentity[it.SourceTag] {
			key = "uri:" + it.URI
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out, len(items) - len(out)
}

// match looks each item up in manifest and returns the number of hits.
func match(items []media.Item, manifest media.Manifest, copyDescriptions bool) int {
	hits := 0
	for i := range items {
		entry, ok := manifest.Lookup(items[i].URI)
		items[i].Matched = ok
		if !ok {
			continue
		}
		hits++
		if copyDescriptions {
			items[i].Metadata.Description = entry.Description
			items[i].Metadata.POI = media.CopyPOI(entry.POI)
		}
		if items[i].Metadata.TimeOfDay == media.Unknown {
			items[i].Metadata.TimeOfDay = entry.TimeOfDay
		}
	}
	return hits
}

// describe fills empty descriptions from the item location.
func describe(items []media.Item, style DescriptionStyle, depth int) {
	if style == DescriptionDisabled {
		return
	}
	for i := range items {
		if items[i].Metadata.Description != "" {
			continue
		}
		switch style {
		case DescriptionFilename:
			items[i].Metadata.Description = media.TitleCase(media.FilenameWithoutExtension(items[i].URI))
		case DescriptionFolderAndFilename:
			items[i].Metadata.Description = media.FolderAndFilename(items[i].URI, true, depth)
		case DescriptionFolderName:
			items[i].Metadata.Description = media.FolderAndFilename(items[i].URI, false, depth)
		}
	}
}

func (a *Aggregator) shuffle(items []media.Item) {
	a.randMu.Lock()
	defer a.randMu.Unlock()
	a.rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
