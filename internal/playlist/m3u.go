// SPDX-License-Identifier: MIT

package playlist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio/v2"

	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/media"
)

// WriteM3U renders items as an extended M3U playlist. Credentials embedded
// in locators are redacted.
func WriteM3U(w io.Writer, items []media.Item) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	for _, it := range items {
		title := it.Metadata.Description
		if title == "" {
			title = media.FilenameWithoutExtension(it.URI)
		}
		buf.WriteString(fmt.Sprintf(
			`#EXTINF:-1 tvg-name="%s" group-title="%s" aerial-kind="%s" aerial-time="%s",%s`+"\n",
			attr(media.FilenameOf(it.URI)), attr(it.SourceTag), it.Kind, it.Metadata.TimeOfDay, oneLine(title),
		))
		buf.WriteString(xglog.RedactURI(it.URI) + "\n")
	}
	_, err := io.Copy(w, buf)
	return err
}

// WriteFile writes the playlist to path atomically.
func WriteFile(ctx context.Context, path string, items []media.Item) error {
	logger := xglog.WithContext(ctx, xglog.WithComponent("playlist"))

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending M3U file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending M3U file")
		}
	}()

	if err := WriteM3U(pendingFile, items); err != nil {
		return fmt.Errorf("write M3U data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace M3U file: %w", err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "playlist.exported").
		Str(xglog.FieldPath, path).
		Int(xglog.FieldCount, len(items)).
		Msg("playlist written")
	return nil
}

func attr(s string) string {
	return strings.ReplaceAll(oneLine(s), `"`, "'")
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
