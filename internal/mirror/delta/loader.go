package delta

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"

	"github.com/livemirror/livemirror/internal/mirror/notify"
)

// ApplyFunc applies one batch of statements to the target store and returns
// the number of triples the store reports as affected.
type ApplyFunc func(ctx context.Context, batch string) (int, error)

// Stats summarizes one fully processed delta file.
type Stats struct {
	Lines   int
	Applied int
}

// Loader decompresses delta files and streams their contents to the target
// store in byte-bounded, line-aligned batches.
type Loader struct {
	notifier *notify.Notifier
}

func NewLoader(notifier *notify.Notifier) *Loader {
	return &Loader{notifier: notifier}
}

// Apply gunzips the file at path and feeds it to apply in batches of roughly
// targetBytes, never splitting a line (a single line longer than targetBytes
// forms its own batch, trailing newline preserved). The notifier, when
// configured, is pinged once per non-empty batch.
//
// A decompression or read error aborts the file and is returned to the
// caller; the cursor is then not advanced, so a restart refetches and
// reapplies the whole file.
func (l *Loader) Apply(ctx context.Context, path string, action notify.Action, apply ApplyFunc, targetBytes int) (*Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open delta %q: %w", path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("gunzip delta %q: %w", path, err)
	}
	defer gz.Close()

	stats := &Stats{}
	reader := bufio.NewReader(gz)

	var batch []string
	var batchBytes int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		applied, err := apply(ctx, strings.Join(batch, ""))
		if err != nil {
			return err
		}
		stats.Lines += len(batch)
		stats.Applied += applied
		l.notifier.Notify(ctx, batch, action)
		batch = batch[:0]
		batchBytes = 0
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			batch = append(batch, line)
			batchBytes += len(line)
			if batchBytes >= targetBytes {
				if ferr := flush(); ferr != nil {
					return stats, ferr
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read delta %q: %w", path, err)
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	slog.Info("delta applied", "file", path, "applied", stats.Applied, "lines", stats.Lines, "batchSize", humanize.Bytes(uint64(targetBytes)))
	return stats, nil
}
