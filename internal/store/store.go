// Package store is the persistence layer: a blob-at-a-time durable store
// for the three named records that make up pipeline state — the target
// queue, the active task, and the latest-snapshot map — with
// default-on-missing semantics and atomic replace-on-save.
//
// Filesystem access goes through an injected afero.Fs so production runs
// against afero.NewOsFs() and tests run against afero.NewMemMapFs() without
// touching disk: interfaces are constructed at the edges, never a global
// registry.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/duskvault/snaprelay/internal/model"
	"github.com/duskvault/snaprelay/internal/pkg/errs"
)

const (
	queueFile      = "target_queue.bin"
	activeTaskFile = "active_tasks.bin"
	snapshotMapFile = "latest_snapshot_map.bin"

	tmpSuffix = ".tmp"
	fileMode  = 0o644
	dirMode   = 0o755
)

// Store is a single status manager's durable backend: three files under a
// storage root. The store creates the root on first use.
type Store struct {
	fs   afero.Fs
	root string
}

// New returns a Store rooted at dir on the given filesystem. dir is created
// (including parents) if it does not already exist.
func New(fs afero.Fs, dir string) (*Store, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("%w: create storage root %q: %v", errs.ErrPersistence, dir, err)
	}
	return &Store{fs: fs, root: dir}, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.root, name) }

// LoadQueue returns the persisted target queue, or an empty queue if the
// file does not exist yet (default-on-missing).
func (s *Store) LoadQueue() (model.BackupTargetQueue, error) {
	var q model.BackupTargetQueue
	if err := s.load(queueFile, &q); err != nil {
		return model.BackupTargetQueue{}, err
	}
	return q, nil
}

// SaveQueue atomically persists the target queue.
func (s *Store) SaveQueue(q model.BackupTargetQueue) error {
	return s.save(queueFile, q)
}

// LoadActiveTask returns the persisted active task, or its zero value if the
// file does not exist yet.
func (s *Store) LoadActiveTask() (model.ActiveBackupTask, error) {
	var t model.ActiveBackupTask
	if err := s.load(activeTaskFile, &t); err != nil {
		return model.ActiveBackupTask{}, err
	}
	return t, nil
}

// SaveActiveTask atomically persists the active task.
func (s *Store) SaveActiveTask(t model.ActiveBackupTask) error {
	return s.save(activeTaskFile, t)
}

// LoadLatestSnapshotMap returns the persisted snapshot map, or an empty map
// if the file does not exist yet. No core write path in this package
// mutates this map (see DESIGN.md); it is read-through state owned by the
// scheduler layer.
func (s *Store) LoadLatestSnapshotMap() (model.LatestSnapshotMap, error) {
	var m model.LatestSnapshotMap
	if err := s.load(snapshotMapFile, &m); err != nil {
		return model.LatestSnapshotMap{}, err
	}
	return m, nil
}

// SaveLatestSnapshotMap atomically persists the snapshot map.
func (s *Store) SaveLatestSnapshotMap(m model.LatestSnapshotMap) error {
	return s.save(snapshotMapFile, m)
}

func (s *Store) load(name string, v interface{}) error {
	f, err := s.fs.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // default-on-missing
		}
		return fmt.Errorf("%w: open %q: %v", errs.ErrPersistence, name, err)
	}
	defer f.Close()

	if err := decodeRecord(f, v); err != nil {
		if err == io.EOF {
			return nil // empty file: default-on-missing
		}
		return fmt.Errorf("%w: decode %q: %v", errs.ErrPersistence, name, err)
	}
	return nil
}

// save writes the encoded record to a temp file and renames it over the
// target, so a crash mid-write never leaves a partially written blob
// observable by a subsequent load.
func (s *Store) save(name string, v interface{}) error {
	payload, err := encodeRecordBytes(v)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", errs.ErrPersistence, name, err)
	}
	tmp := s.path(name) + tmpSuffix
	if err := afero.WriteFile(s.fs, tmp, payload, fileMode); err != nil {
		return fmt.Errorf("%w: write temp %q: %v", errs.ErrPersistence, tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path(name)); err != nil {
		return fmt.Errorf("%w: rename %q over %q: %v", errs.ErrPersistence, tmp, name, err)
	}
	return nil
}
