// Package roster supplies point-in-time snapshots of staff and schedule
// data. The autonomous engine treats this as its data extractor: a read
// path that either yields a consistent snapshot or an error, never a
// partially populated view.
package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/shiftd/internal/schedule"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

const maxRosterFileSize = 4 * 1024 * 1024 // 4MB

// Store provides snapshots of roster and schedule data.
type Store interface {
	// Snapshot returns a point-in-time copy of the current data.
	Snapshot(ctx context.Context) (*schedule.Snapshot, error)

	// Close releases any resources held by the store.
	Close() error
}

// rosterFile is the on-disk YAML layout.
type rosterFile struct {
	Staff   []schedule.StaffProfile `yaml:"staff"`
	Periods []schedule.Period       `yaml:"periods"`
}

// FileStore loads roster data from a YAML file and reloads it when the
// file changes. A reload that fails to parse keeps the last good data.
type FileStore struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	stop    chan struct{}

	mu      sync.RWMutex
	staff   []schedule.StaffProfile
	periods []schedule.Period
	closed  bool
}

// NewFileStore creates a file-backed store and performs the initial
// load. The file must exist and parse; later reloads are best-effort.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("roster path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileStore{
		path:   path,
		logger: logger,
		stop:   make(chan struct{}),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("loading roster file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching roster file: %w", err)
	}
	s.watcher = watcher

	go s.watch()

	return s, nil
}

// NewStaticFileStore creates a file-backed store without a watcher:
// the file is read once and changes on disk are ignored.
func NewStaticFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("roster path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileStore{
		path:   path,
		logger: logger,
		stop:   make(chan struct{}),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("loading roster file: %w", err)
	}

	return s, nil
}

// Snapshot returns a deep copy of the current roster data.
func (s *FileStore) Snapshot(ctx context.Context) (*schedule.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New("roster store is closed")
	}

	return buildSnapshot(s.staff, s.periods), nil
}

// Close stops the watcher. Idempotent.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stop)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// load reads and parses the roster file, replacing current data.
func (s *FileStore) load() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat roster file: %w", err)
	}
	if info.Size() > maxRosterFileSize {
		return fmt.Errorf("roster file too large: %d bytes (max %d)", info.Size(), maxRosterFileSize)
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading roster file: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(content, &rf); err != nil {
		return fmt.Errorf("parsing roster file: %w", err)
	}

	s.mu.Lock()
	s.staff = rf.Staff
	s.periods = rf.Periods
	s.mu.Unlock()

	s.logger.Info("roster loaded",
		zap.String("path", s.path),
		zap.Int("staff", len(rf.Staff)),
		zap.Int("periods", len(rf.Periods)),
	)
	return nil
}

// watch reloads the roster on file writes until Close.
func (s *FileStore) watch() {
	for {
		select {
		case <-s.stop:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.load(); err != nil {
				// Keep the last good data; editors often write partial files.
				s.logger.Warn("roster reload failed, keeping previous data",
					zap.String("path", s.path),
					zap.Error(err),
				)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("roster watcher error", zap.Error(err))
		}
	}
}

// MemoryStore is an in-memory Store used by tests and the demo command.
type MemoryStore struct {
	mu      sync.RWMutex
	staff   []schedule.StaffProfile
	periods []schedule.Period
	err     error
}

// NewMemoryStore creates a store with the given data.
func NewMemoryStore(staff []schedule.StaffProfile, periods []schedule.Period) *MemoryStore {
	return &MemoryStore{staff: staff, periods: periods}
}

// Snapshot returns a deep copy of the stored data, or the configured
// failure if SetError was called.
func (s *MemoryStore) Snapshot(ctx context.Context) (*schedule.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	return buildSnapshot(s.staff, s.periods), nil
}

// SetPeriods replaces the stored periods.
func (s *MemoryStore) SetPeriods(periods []schedule.Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = periods
}

// SetError makes subsequent Snapshot calls fail with err. Pass nil to
// clear.
func (s *MemoryStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// buildSnapshot deep-copies staff and periods into a Snapshot.
func buildSnapshot(staff []schedule.StaffProfile, periods []schedule.Period) *schedule.Snapshot {
	staffCopy := make([]schedule.StaffProfile, len(staff))
	copy(staffCopy, staff)

	periodsCopy := make([]schedule.Period, len(periods))
	for i, p := range periods {
		periodsCopy[i] = schedule.Period{Month: p.Month, Grid: p.Grid.Clone()}
	}

	return &schedule.Snapshot{
		Summary: schedule.Summary{
			TotalStaff:   len(staffCopy),
			TotalPeriods: len(periodsCopy),
		},
		Staff:   staffCopy,
		Periods: periodsCopy,
	}
}
