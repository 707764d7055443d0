// SPDX-License-Identifier: MIT

// aerialctl runs one aggregation outside the daemon.
//
// Usage:
//
//	aerialctl validate -config config.yaml
//	aerialctl playlist -config config.yaml [-format text|json|m3u] [-o out.m3u]
//
// Exit codes:
//   - 0: success
//   - 1: configuration or aggregation error
//   - 2: usage error
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/config"
	"github.com/theothernt/AerialViews-sub000/internal/daemon"
	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
	"github.com/theothernt/AerialViews-sub000/internal/playlist"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  aerialctl validate -config config.yaml")
	fmt.Fprintln(w, "  aerialctl playlist -config config.yaml [-format text|json|m3u] [-o file]")
	fmt.Fprintln(w, "  aerialctl version")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	// Keep stdout clean for piping; diagnostics go to stderr.
	xglog.Configure(xglog.Config{Level: "warn", Output: stderr, Service: "aerialctl"})

	switch args[0] {
	case "version":
		fmt.Fprintln(stdout, Version)
		return 0
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "playlist":
		return runPlaylist(ctx, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func loadConfig(fs *flag.FlagSet, args []string, stderr io.Writer) (config.AppConfig, int) {
	path := fs.String("config", "", "path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return config.AppConfig{}, 2
	}
	cfg, err := config.NewLoader(*path, Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return config.AppConfig{}, 1
	}
	return cfg, 0
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if _, code := loadConfig(fs, args, stderr); code != 0 {
		return code
	}
	fmt.Fprintln(stdout, "configuration is valid")
	return 0
}

func runPlaylist(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("playlist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "text", "output format: text, json or m3u")
	out := fs.String("o", "", "write M3U to this file instead of stdout")
	cfg, code := loadConfig(fs, args, stderr)
	if code != 0 {
		return code
	}
	switch *format {
	case "text", "json", "m3u":
	default:
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}

	rt, err := daemon.Build(cfg, func() aggregator.Options { return cfg.Playlist.Options() }, daemon.Overrides{})
	if err != nil {
		fmt.Fprintf(stderr, "Setup error: %v\n", err)
		return 1
	}
	defer func() { _ = rt.Close(ctx) }()

	pl, report := rt.Service.Refresh(ctx)
	for _, name := range report.Failed() {
		fmt.Fprintf(stderr, "warning: source %s reported errors\n", name)
	}

	if *out != "" {
		if err := playlist.WriteFile(ctx, *out, pl.Items()); err != nil {
			fmt.Fprintf(stderr, "Export error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %d items to %s\n", pl.Size(), *out)
		return 0
	}

	if err := render(stdout, *format, pl.Items(), report); err != nil {
		fmt.Fprintf(stderr, "Output error: %v\n", err)
		return 1
	}
	return 0
}

type itemView struct {
	URI         string `json:"uri"`
	Kind        string `json:"kind"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
	TimeOfDay   string `json:"timeOfDay"`
	Matched     bool   `json:"matched"`
}

func render(w io.Writer, format string, items []media.Item, report aggregator.Report) error {
	switch format {
	case "m3u":
		return playlist.WriteM3U(w, items)
	case "json":
		views := make([]itemView, 0, len(items))
		for _, it := range items {
			views = append(views, itemView{
				URI:         xglog.RedactURI(it.URI),
				Kind:        it.Kind.String(),
				Source:      it.SourceTag,
				Description: it.Metadata.Description,
				TimeOfDay:   it.Metadata.TimeOfDay.String(),
				Matched:     it.Matched,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Report aggregator.Report `json:"report"`
			Items  []itemView        `json:"items"`
		}{report, views})
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for i, it := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, it.Kind, it.SourceTag, it.Metadata.TimeOfDay, media.FilenameOf(it.URI))
		}
		fmt.Fprintf(tw, "\n%d videos, %d images, %d duplicates removed\n", report.Videos, report.Images, report.DuplicatesRemoved)
		return tw.Flush()
	}
}
