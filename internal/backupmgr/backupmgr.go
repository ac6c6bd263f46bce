// Package backupmgr is the backup manager: a stateless (between invocations)
// dispatcher. One Run call performs exactly one stage-step for the
// head-of-queue target, commits its progress through the status manager,
// and returns.
package backupmgr

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/duskvault/snaprelay/internal/model"
	"github.com/duskvault/snaprelay/internal/pkg/errs"
	"github.com/duskvault/snaprelay/internal/pkg/logger"
	"github.com/duskvault/snaprelay/internal/statusmgr"
	"github.com/duskvault/snaprelay/internal/transform"
)

// Manager drives one stage-step of the head-of-queue target per Run call.
// It never mutates the queue itself — only the status manager's dequeue
// path does that, once a task reaches Done.
type Manager struct {
	status *statusmgr.Manager
	fs     afero.Fs
	log    *logger.Logger

	exporter   transform.Exporter
	splitter   transform.Splitter
	compressor transform.Compressor
	encryptor  transform.Encryptor
	hasher     transform.Hasher
	uploader   transform.RemoteUploader

	tempRoot  string
	chunkSize int64
}

// Deps bundles the pluggable transformer leaves a Manager is constructed
// with. Every field is a capability interface; production wiring supplies
// real leaves, tests supply deterministic fakes — there is no global
// registry.
type Deps struct {
	Status     *statusmgr.Manager
	FS         afero.Fs
	Log        *logger.Logger
	Exporter   transform.Exporter
	Splitter   transform.Splitter
	Compressor transform.Compressor
	Encryptor  transform.Encryptor
	Hasher     transform.Hasher
	Uploader   transform.RemoteUploader
	TempRoot   string
	// ChunkSize is the fixed split size used to derive split_qty from the
	// exported file's size once SnapshotTest completes. Must match the
	// Splitter's own chunk size.
	ChunkSize int64
}

// New constructs a Manager.
func New(d Deps) *Manager {
	log := d.Log
	if log == nil {
		log = &logger.Logger{}
	}
	fs := d.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 64 << 20
	}
	return &Manager{
		status:     d.Status,
		fs:         fs,
		log:        log.With("component", "backupmgr"),
		exporter:   d.Exporter,
		splitter:   d.Splitter,
		compressor: d.Compressor,
		encryptor:  d.Encryptor,
		hasher:     d.Hasher,
		uploader:   d.Uploader,
		tempRoot:   d.TempRoot,
		chunkSize:  chunkSize,
	}
}

// Run performs exactly one stage-step for the head-of-queue target and
// returns. auto is reserved for caller policy (retry loop vs. single-step);
// orchestrator semantics are identical either way.
func (m *Manager) Run(ctx context.Context, auto bool) error {
	step, err := m.status.RestoreStatus()
	if err != nil {
		return err
	}

	if step.Stage == model.StageDone {
		return m.finishHead(ctx)
	}

	target, err := m.headTarget()
	if err != nil {
		return err
	}

	switch step.Stage {
	case model.StageSnapshotExport:
		return m.runSnapshotExport(ctx, target)
	case model.StageSnapshotTest:
		return m.runSnapshotTest(ctx, target)
	case model.StageSplit:
		return m.runSplit(ctx, step.Current)
	case model.StageCompress:
		return m.runCompress(ctx, step.Current)
	case model.StageEncrypt:
		return m.runEncrypt(ctx, step.Current)
	case model.StageUpload:
		return m.runUpload(ctx, target, step.Current)
	case model.StageCleanup:
		return m.runCleanup(ctx, step.Current)
	case model.StageVerify:
		return m.runVerify(ctx)
	default:
		return fmt.Errorf("backupmgr: unknown stage %q", step.Stage)
	}
}

// headTarget returns the current queue head, which Run's dispatch always
// has available once restore_status reports anything other than Done:
// queue emptiness implies no task is runnable.
func (m *Manager) headTarget() (model.BackupTarget, error) {
	q, err := m.status.GetTargetQueue()
	if err != nil {
		return model.BackupTarget{}, err
	}
	t, ok := q.Head()
	if !ok {
		return model.BackupTarget{}, errs.ErrEmptyQueue
	}
	return t, nil
}

// finishHead dequeues the completed head-of-queue target and resets the
// active task: an outer loop dequeues and resets active on Done. On an
// empty queue there is nothing to finish and it returns errs.ErrEmptyQueue.
func (m *Manager) finishHead(ctx context.Context) error {
	if _, err := m.status.DequeueTarget(); err != nil {
		return err
	}
	return m.status.ClearActiveTask()
}

// tempDir is the deterministic directory for a target's intermediate
// files: <temp_root>/<dataset>/<backup_type>_<YYYY-MM-DD>. Deterministic
// from active-task fields so any resumed invocation regenerates the exact
// same paths.
func (m *Manager) tempDir(t model.BackupTarget) string {
	return filepath.Join(m.tempRoot, t.Dataset, string(t.BackupType)+"_"+t.Date.Format("2006-01-02"))
}

func splitPath(exportedPath string, index uint64, splitExt func(uint64) string) string {
	return exportedPath + "." + splitExt(index)
}

func withExt(path, ext string) string { return path + "." + ext }

// latestSnapshotName asks the exporter for dataset's most recent snapshot
// name, to be used as the ref for a fresh export.
func (m *Manager) latestSnapshotName(ctx context.Context, dataset string) (string, error) {
	snaps, err := m.exporter.List(ctx, dataset)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", fmt.Errorf("no snapshots available for dataset %q", dataset)
	}
	return snaps[len(snaps)-1], nil
}

// priorSnapshotName looks up the base snapshot a Diff/Incr export should be
// taken against, from the read-through latest-snapshot map (this map has no
// core write path — it is populated by the scheduler layer that enqueues
// targets). An empty result degrades a Diff/Incr target to a full stream,
// matching zfs send's own behavior when no base is given.
func (m *Manager) priorSnapshotName(dataset string, bt model.BackupType) string {
	snapMap, err := m.status.GetLatestSnapshotMap()
	if err != nil {
		return ""
	}
	info, ok := snapMap.Get(dataset, bt)
	if !ok {
		return ""
	}
	return info.Snapshot
}

// splitQty derives the total split count for path from its size, per the
// configured chunk size. A zero-byte export yields a split_qty of zero,
// which is the degenerate case that never leaves the Split stage.
func (m *Manager) splitQty(path string) (uint64, error) {
	info, err := m.fs.Stat(path)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}
	qty := size / m.chunkSize
	if size%m.chunkSize != 0 {
		qty++
	}
	return uint64(qty), nil
}
