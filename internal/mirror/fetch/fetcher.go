package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/imroc/req/v3"

	"github.com/livemirror/livemirror/internal/utils"
	"github.com/livemirror/livemirror/internal/version"
)

// chunkSize bounds the read buffer used while streaming a response body to
// disk.
const chunkSize = 4096

// Fetcher downloads delta files from the origin server. A missing file is a
// normal outcome (the hour is exhausted), so it is reported as found=false
// rather than an error. Every other failure is retried at a fixed interval
// for as long as the process lives: the mirror is an unattended daemon and
// giving up on a transient failure would strand the cursor.
type Fetcher struct {
	client    *req.Client
	retryWait time.Duration
}

// New builds a Fetcher. The retry loop below owns failure handling, so the
// underlying client performs no automatic retries of its own.
func New(retryWait time.Duration) *Fetcher {
	client := req.C().
		SetUserAgent(version.UserAgent())

	return &Fetcher{
		client:    client,
		retryWait: retryWait,
	}
}

// Fetch streams the file at url into dir, deriving the local filename from
// the URL's final path segment. Returns the saved path and found=true on
// success, found=false on a 404. Transient transport and server errors are
// retried indefinitely; the only error returned is context cancellation.
func (f *Fetcher) Fetch(ctx context.Context, url, dir string) (string, bool, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", false, fmt.Errorf("fetch %q: %w", url, err)
	}
	dest := filepath.Join(dir, filepath.Base(url))

	for {
		found, err := f.fetchOnce(ctx, url, dest)
		if err == nil {
			if !found {
				return "", false, nil
			}
			return dest, true, nil
		}
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}

		slog.Warn("fetch failed, retrying", "url", url, "wait", f.retryWait, "error", err)
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(f.retryWait):
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string) (bool, error) {
	resp, err := f.client.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.GetStatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsErrorState() {
		return false, fmt.Errorf("server returned %s", resp.GetStatus())
	}

	file, err := os.Create(dest)
	if err != nil {
		return false, err
	}

	buf := make([]byte, chunkSize)
	written, err := io.CopyBuffer(file, resp.Body, buf)
	if err != nil {
		file.Close()
		os.Remove(dest)
		return false, err
	}
	if err := file.Close(); err != nil {
		return false, err
	}

	slog.Debug("fetched", "url", url, "size", humanize.Bytes(uint64(written)))
	return true, nil
}
