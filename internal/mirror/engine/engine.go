// Package engine drives the mirror's polling loop: compare the persisted
// cursor against the origin server's published marker, fetch and apply any
// increments the mirror has not seen, and persist progress after every fully
// applied step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/livemirror/livemirror/internal/mirror/cursor"
	"github.com/livemirror/livemirror/internal/mirror/delta"
	"github.com/livemirror/livemirror/internal/mirror/fetch"
	"github.com/livemirror/livemirror/internal/mirror/notify"
	"github.com/livemirror/livemirror/internal/mirror/sparql"
	"github.com/livemirror/livemirror/internal/version"
)

const (
	markerFile = "lastPublishedFile.txt"

	addedSuffix   = ".added.nt.gz"
	removedSuffix = ".removed.nt.gz"

	// Batch sizes for streaming delta contents into the store. Deletes use a
	// smaller batch because DELETE WHERE is considerably more expensive per
	// statement than INSERT.
	insertBatchBytes = 1 << 14
	deleteBatchBytes = 1 << 12
)

var (
	// ErrInconsistentServer means the origin published a marker promising
	// more increments than it actually serves. Stopping here protects the
	// cursor from advancing past data that never existed.
	ErrInconsistentServer = errors.New("engine: server marker is behind the cursor after hour exhaustion")

	// ErrNoCursor means the store holds no cursor yet; the operator must
	// seed one before the mirror can run.
	ErrNoCursor = errors.New("engine: no cursor stored, seed one with --last-updated")
)

// State identifies the engine's position in its polling state machine.
type State int

const (
	StateCheckingPublished State = iota
	StateAdvancing
	StateHourExhausted
)

func (s State) String() string {
	switch s {
	case StateCheckingPublished:
		return "CHECKING_PUBLISHED"
	case StateAdvancing:
		return "ADVANCING"
	case StateHourExhausted:
		return "HOUR_EXHAUSTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine owns the cursor for the lifetime of a run. All I/O is sequential:
// one increment is fully fetched, applied and persisted before the next is
// considered.
type Engine struct {
	store     *cursor.Store
	fetcher   *fetch.Fetcher
	triples   *sparql.Client
	loader    *delta.Loader
	marker    *req.Client
	serverURL string
	tempDir   string
	pollWait  time.Duration

	cur         *cursor.Cursor
	published   string
	checkedOnce bool
	wasBehind   bool
}

func New(store *cursor.Store, fetcher *fetch.Fetcher, triples *sparql.Client, loader *delta.Loader, serverURL, tempDir string, pollWait time.Duration) *Engine {
	marker := req.C().
		SetUserAgent(version.UserAgent()).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second)

	return &Engine{
		store:     store,
		fetcher:   fetcher,
		triples:   triples,
		loader:    loader,
		marker:    marker,
		serverURL: strings.TrimRight(serverURL, "/"),
		tempDir:   tempDir,
		pollWait:  pollWait,
	}
}

// Run executes the polling loop until a fatal error or cancellation. It never
// returns nil.
func (e *Engine) Run(ctx context.Context) error {
	text, err := e.store.Read()
	if err != nil {
		return err
	}
	if text == "" {
		return ErrNoCursor
	}
	cur, err := cursor.Parse(text)
	if err != nil {
		return err
	}
	e.cur = cur

	slog.Info("engine start", "cursor", e.cur, "server", e.serverURL)

	state := StateCheckingPublished
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch state {
		case StateCheckingPublished:
			state, err = e.checkPublished(ctx)
		case StateAdvancing:
			state, err = e.advance(ctx)
		case StateHourExhausted:
			state, err = e.exhaustHour()
		}
		if err != nil {
			return err
		}
	}
}

// checkPublished refreshes the published marker and decides whether there is
// anything left to apply. The poll sleep only happens when the previous check
// already found the mirror caught up; while behind, checks are back to back.
func (e *Engine) checkPublished(ctx context.Context) (State, error) {
	if e.checkedOnce && !e.wasBehind {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(e.pollWait):
		}
	}

	published, err := e.fetchMarker(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch published marker: %w", err)
	}
	e.published = published
	e.checkedOnce = true

	e.wasBehind = e.cur.Behind(published)
	if !e.wasBehind {
		slog.Debug("up to date", "cursor", e.cur, "published", published)
		return StateCheckingPublished, nil
	}
	return StateAdvancing, nil
}

// advance applies the next increment: fetch both per-hour delta files, load
// whichever exists, persist the cursor. Both files missing means the hour has
// no more increments.
func (e *Engine) advance(ctx context.Context) (State, error) {
	if err := e.cur.Increment(); err != nil {
		return 0, err
	}

	base := e.serverURL + "/" + e.cur.URL()
	dlDir := filepath.Join(e.tempDir, e.cur.Path())

	addedPath, addedFound, err := e.fetcher.Fetch(ctx, base+addedSuffix, dlDir)
	if err != nil {
		return 0, err
	}
	removedPath, removedFound, err := e.fetcher.Fetch(ctx, base+removedSuffix, dlDir)
	if err != nil {
		return 0, err
	}

	if !addedFound && !removedFound {
		return StateHourExhausted, nil
	}

	if addedFound {
		if _, err := e.loader.Apply(ctx, addedPath, notify.ActionAdd, e.triples.Insert, insertBatchBytes); err != nil {
			return 0, err
		}
	}
	if removedFound {
		if _, err := e.loader.Apply(ctx, removedPath, notify.ActionRemove, e.triples.Delete, deleteBatchBytes); err != nil {
			return 0, err
		}
	}

	if err := e.store.Write(e.cur.String()); err != nil {
		return 0, err
	}
	return StateCheckingPublished, nil
}

// exhaustHour truncates the cursor so the next increment moves to the next
// hour. The server promised data past this point, so a cursor that is no
// longer behind the marker here means the server lied about what it
// published.
func (e *Engine) exhaustHour() (State, error) {
	if err := e.cur.FinishHour(); err != nil {
		return 0, err
	}
	if !e.cur.Behind(e.published) {
		return 0, fmt.Errorf("%w: published %q, cursor %q", ErrInconsistentServer, e.published, e.cur.ForComparison())
	}
	if err := e.store.Write(e.cur.String()); err != nil {
		return 0, err
	}
	return StateCheckingPublished, nil
}

func (e *Engine) fetchMarker(ctx context.Context) (string, error) {
	resp, err := e.marker.R().
		SetContext(ctx).
		Get(e.serverURL + "/" + markerFile)
	if err != nil {
		return "", err
	}
	if resp.IsErrorState() {
		return "", fmt.Errorf("server returned %s for %s", resp.GetStatus(), markerFile)
	}
	return strings.TrimSpace(resp.String()), nil
}

