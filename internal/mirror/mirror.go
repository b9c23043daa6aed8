// Package mirror wires the sync components together: one cursor store, one
// fetcher, one SPARQL client, one loader, one engine, all constructed at
// startup from an explicit Config and torn down through the store's exit
// queue.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/livemirror/livemirror/internal/mirror/config"
	"github.com/livemirror/livemirror/internal/mirror/cursor"
	"github.com/livemirror/livemirror/internal/mirror/delta"
	"github.com/livemirror/livemirror/internal/mirror/engine"
	"github.com/livemirror/livemirror/internal/mirror/fetch"
	"github.com/livemirror/livemirror/internal/mirror/notify"
	"github.com/livemirror/livemirror/internal/mirror/sparql"
	"github.com/livemirror/livemirror/internal/utils"
)

type Client struct {
	config  *config.Config
	store   *cursor.Store
	engine  *engine.Engine
	tempDir string
}

// New acquires the cursor store lock (failing fast when another instance is
// running), prepares the download workspace and builds the engine. The caller
// must Close the client to release the lock and run cleanup.
func New(cfg *config.Config) (*Client, error) {
	store, err := cursor.OpenStore(cfg.CursorFile)
	if err != nil {
		return nil, err
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir, err = os.MkdirTemp("", "livemirror")
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
	} else {
		if err := utils.EnsureDir(tempDir); err != nil {
			store.Close()
			return nil, fmt.Errorf("create temp dir %q: %w", tempDir, err)
		}
		if !utils.IsWritable(tempDir) {
			store.Close()
			return nil, fmt.Errorf("temp dir %q is not writable", tempDir)
		}
	}
	if cfg.ClearTempFiles {
		dir := tempDir
		store.OnExit(func() error {
			slog.Debug("removing temp dir", "path", dir)
			return os.RemoveAll(dir)
		})
	}

	notifier, err := notify.New(cfg.PingURL, cfg.PingPassword, cfg.PingPattern)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}

	fetcher := fetch.New(cfg.RetryWait)
	triples := sparql.New(cfg.SparqlEndpoint, cfg.SparqlGraph, cfg.SparqlUsername, cfg.SparqlPassword)
	loader := delta.NewLoader(notifier)
	eng := engine.New(store, fetcher, triples, loader, cfg.ServerURL, tempDir, cfg.RetryWait)

	return &Client{
		config:  cfg,
		store:   store,
		engine:  eng,
		tempDir: tempDir,
	}, nil
}

// SetCursor validates and persists an operator-supplied cursor, bypassing the
// polling loop entirely.
func (c *Client) SetCursor(text string) error {
	cur, err := cursor.Parse(text)
	if err != nil {
		return err
	}
	if err := c.store.Write(cur.String()); err != nil {
		return err
	}
	slog.Info("cursor updated", "cursor", cur)
	return nil
}

// Start runs the engine until a fatal error or cancellation.
func (c *Client) Start(ctx context.Context) error {
	slog.Info("mirror start", "server", c.config.ServerURL, "store", c.config.SparqlEndpoint, "cursorFile", c.store.Path(), "tempDir", c.tempDir)
	return c.engine.Run(ctx)
}

// Close releases the cursor file lock and runs the registered cleanup queue.
func (c *Client) Close() error {
	return c.store.Close()
}
