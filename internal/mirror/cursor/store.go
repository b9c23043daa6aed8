package cursor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"github.com/livemirror/livemirror/internal/utils"
)

var ErrLocked = errors.New("cursor store locked by another instance")

// Store persists the cursor in a single plain-text file guarded by an
// advisory exclusive lock held for the process lifetime. The lock is
// non-enforcing: it only coordinates with other instances of this program,
// which acquire it the same way and fail fast when it is already held.
type Store struct {
	path   string
	file   *os.File
	flock  *flock.Flock
	onExit []func() error
}

// OpenStore opens (creating if absent) the cursor file at path and takes the
// exclusive lock. Returns ErrLocked when another instance holds it.
func OpenStore(path string) (*Store, error) {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve cursor file %q: %w", path, err)
	}
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("create cursor file dir: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cursor file %q: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %q", ErrLocked, path)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open cursor file %q: %w", path, err)
	}

	return &Store{path: path, file: file, flock: lock}, nil
}

// Path returns the resolved cursor file path.
func (s *Store) Path() string {
	return s.path
}

// Read returns the stored cursor text, trimmed, or "" when nothing has been
// persisted yet.
func (s *Store) Read() (string, error) {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek cursor file: %w", err)
	}
	data, err := io.ReadAll(s.file)
	if err != nil {
		return "", fmt.Errorf("read cursor file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write replaces the entire file content with text and flushes it to durable
// storage before returning.
func (s *Store) Write(text string) error {
	if err := s.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate cursor file: %w", err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek cursor file: %w", err)
	}
	if _, err := s.file.WriteString(text); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync cursor file: %w", err)
	}
	return nil
}

// OnExit queues fn to run when the store is closed. Callbacks run in
// registration order; the first failure stops the rest. Used for best-effort
// cleanup such as removing the temp download directory.
func (s *Store) OnExit(fn func() error) {
	s.onExit = append(s.onExit, fn)
}

// Close releases the lock, closes the file, then runs the exit queue.
func (s *Store) Close() error {
	if s.flock.Locked() {
		if err := s.flock.Unlock(); err != nil {
			return fmt.Errorf("unlock cursor file: %w", err)
		}
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close cursor file: %w", err)
	}
	for _, fn := range s.onExit {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
