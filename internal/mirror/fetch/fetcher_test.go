package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_SavesFileUnderURLBasename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<s> <p> <o> .\n"))
	}))
	defer server.Close()

	dir := t.TempDir()
	fetcher := New(10 * time.Millisecond)

	path, found, err := fetcher.Fetch(context.Background(), server.URL+"/2021-05-01-03-000002.added.nt.gz", dir)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(dir, "2021-05-01-03-000002.added.nt.gz"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<s> <p> <o> .\n", string(data))
}

func TestFetcher_NotFoundReturnsAbsentWithoutRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := New(10 * time.Millisecond)

	path, found, err := fetcher.Fetch(context.Background(), server.URL+"/missing.nt.gz", t.TempDir())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, path)
	assert.Equal(t, int32(1), requests.Load())
}

func TestFetcher_RetriesTransientFailuresUntilSuccess(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	fetcher := New(5 * time.Millisecond)

	path, found, err := fetcher.Fetch(context.Background(), server.URL+"/delta.nt.gz", t.TempDir())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int32(4), requests.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestFetcher_CancellationStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fetcher := New(10 * time.Millisecond)

	_, _, err := fetcher.Fetch(ctx, server.URL+"/delta.nt.gz", t.TempDir())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
