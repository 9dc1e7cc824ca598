package bolt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

const (
	defaultCheckInterval = 2 * time.Second
	defaultLockWait      = 200 * time.Millisecond
)

// Snapshot is the query-side view of an index file. It reads the file
// read-only, keeps the vectors in memory and closes the file again, so no
// lock is held between reloads and a rebuild from another process can run
// at any time. Search picks up a finished rebuild on its next check.
type Snapshot struct {
	path          string
	checkInterval time.Duration
	lockWait      time.Duration
	now           func() time.Time

	mu        sync.RWMutex
	dimension int
	entries   []entry
	stamp     fileStamp

	reloadMu  sync.Mutex
	lastCheck time.Time
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

type SnapshotOption func(*Snapshot)

// WithCheckInterval sets how often Search looks for a newer index file.
// Zero checks on every call.
func WithCheckInterval(d time.Duration) SnapshotOption {
	return func(s *Snapshot) { s.checkInterval = d }
}

// WithLockWait bounds how long a reload waits while a rebuild holds the file.
func WithLockWait(d time.Duration) SnapshotOption {
	return func(s *Snapshot) { s.lockWait = d }
}

// OpenSnapshot loads the index at path. A missing file is an empty index
// until a build creates it.
func OpenSnapshot(path string, opts ...SnapshotOption) (*Snapshot, error) {
	s := &Snapshot{
		path:          path,
		checkInterval: defaultCheckInterval,
		lockWait:      defaultLockWait,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	s.lastCheck = s.now()
	return s, nil
}

func (s *Snapshot) Search(ctx context.Context, queryVector []float32, topK int) ([]domain.Neighbor, error) {
	s.maybeReload()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return nearest(ctx, s.entries, s.dimension, queryVector, topK)
}

func (s *Snapshot) Count(_ context.Context) (int, error) {
	s.maybeReload()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// maybeReload runs at most one reload at a time; concurrent callers keep
// using the current snapshot. A failed reload keeps the old data and is
// retried on the next check.
func (s *Snapshot) maybeReload() {
	if !s.reloadMu.TryLock() {
		return
	}
	defer s.reloadMu.Unlock()

	now := s.now()
	if now.Sub(s.lastCheck) < s.checkInterval {
		return
	}
	s.lastCheck = now

	if err := s.reload(); err != nil {
		slog.Warn("bolt_snapshot_reload_failed", "path", s.path, "error", err)
	}
}

func (s *Snapshot) reload() error {
	stamp, err := statFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.RLock()
	unchanged := stamp.same(s.stamp)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}

	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: s.lockWait})
	if err != nil {
		return fmt.Errorf("open bolt index %s read-only: %w", s.path, err)
	}
	defer db.Close()

	var (
		dim     int
		entries []entry
	)
	err = db.View(func(tx *bbolt.Tx) error {
		var readErr error
		dim, entries, readErr = readEntries(tx)
		return readErr
	})
	if err != nil {
		return fmt.Errorf("load bolt index %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.dimension, s.entries, s.stamp = dim, entries, stamp
	s.mu.Unlock()
	slog.Info("bolt_snapshot_loaded", "path", s.path, "articles", len(entries), "dimension", dim)
	return nil
}

func (f fileStamp) same(o fileStamp) bool {
	return f.size == o.size && f.modTime.Equal(o.modTime)
}

func statFile(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}
