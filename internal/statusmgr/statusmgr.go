// Package statusmgr is the status manager: the single source of truth for
// persisted pipeline state in memory, and the gateway for every commit. It
// never performs business I/O (no compression, no network) — only
// persistence-store reads/writes and in-memory bookkeeping.
package statusmgr

import (
	"fmt"

	"github.com/duskvault/snaprelay/internal/model"
	"github.com/duskvault/snaprelay/internal/pkg/errs"
	"github.com/duskvault/snaprelay/internal/pkg/logger"
	"github.com/duskvault/snaprelay/internal/store"
)

// NextStep is the tuple restore_status computes: the stage that should run
// next, the total number of splits relevant to that stage (0 where not
// meaningful), and the split index the next operation must consume.
type NextStep struct {
	Stage   model.BackupTaskStage
	Total   uint64
	Current uint64
}

// Manager owns the in-memory mirror of the three persisted blobs.
type Manager struct {
	store *store.Store
	log   *logger.Logger

	queue       model.BackupTargetQueue
	active      model.ActiveBackupTask
	snapshotMap model.LatestSnapshotMap
}

// New constructs a Manager over the given persistence store.
func New(st *store.Store, log *logger.Logger) *Manager {
	if log == nil {
		log = &logger.Logger{}
	}
	return &Manager{store: st, log: log.With("component", "statusmgr")}
}

// reload re-reads all three blobs from the store into the in-memory mirror.
// Every public method starts from a fresh reload so an external process
// crash between invocations is always reconciled from disk rather than
// trusted in-memory state.
func (m *Manager) reload() error {
	q, err := m.store.LoadQueue()
	if err != nil {
		return err
	}
	a, err := m.store.LoadActiveTask()
	if err != nil {
		return err
	}
	s, err := m.store.LoadLatestSnapshotMap()
	if err != nil {
		return err
	}
	m.queue, m.active, m.snapshotMap = q, a, s
	return nil
}

// RestoreStatus recomputes the logical execution position purely from
// persisted state. It is a pure function of persisted contents; the only
// externally observable mutation is refreshing the in-memory mirror from
// the store. When the head-of-queue target has no active task yet (a fresh
// SnapshotExport step with an all-zero task), the caller is expected to
// initialize one via EnsureActiveTask before driving the returned stage.
func (m *Manager) RestoreStatus() (NextStep, error) {
	if err := m.reload(); err != nil {
		return NextStep{}, err
	}
	return computeNextStep(m.queue, m.active)
}

// computeNextStep implements the restore_status algorithm. It is a pure
// function so it can be unit tested directly against end-to-end resume
// scenarios without touching a store.
func computeNextStep(q model.BackupTargetQueue, active model.ActiveBackupTask) (NextStep, error) {
	if q.Empty() {
		return NextStep{Stage: model.StageDone}, nil
	}

	p := active.Progress
	total := active.SplitQty
	produced := uint64(len(p.SplitHashes))

	if p.SnapshotExportedName == "" {
		return NextStep{Stage: model.StageSnapshotExport}, nil
	}
	if !p.SnapshotTested {
		return NextStep{Stage: model.StageSnapshotTest}, nil
	}
	if produced > total {
		return NextStep{}, errs.CorruptState("split")
	}
	if produced == 0 {
		return NextStep{Stage: model.StageSplit, Total: total}, nil
	}

	for _, stage := range model.StageOrder() {
		c := p.Counter(stage)
		switch {
		case c < produced:
			return NextStep{Stage: stage, Total: produced, Current: c}, nil
		case c > produced:
			return NextStep{}, errs.CorruptState(fmt.Sprintf("Error stage %s", stage))
		}
	}

	if produced == total {
		if p.Verified {
			return NextStep{Stage: model.StageDone}, nil
		}
		return NextStep{Stage: model.StageVerify, Total: produced}, nil
	}
	return NextStep{Stage: model.StageSplit, Total: total, Current: produced}, nil
}

// -------------------- read-only accessors --------------------

func (m *Manager) GetTargetQueue() (model.BackupTargetQueue, error) {
	if err := m.reload(); err != nil {
		return model.BackupTargetQueue{}, err
	}
	return m.queue, nil
}

func (m *Manager) GetActiveTask() (model.ActiveBackupTask, error) {
	if err := m.reload(); err != nil {
		return model.ActiveBackupTask{}, err
	}
	return m.active, nil
}

func (m *Manager) GetLatestSnapshotMap() (model.LatestSnapshotMap, error) {
	if err := m.reload(); err != nil {
		return model.LatestSnapshotMap{}, err
	}
	return m.snapshotMap, nil
}

// -------------------- queue mutators --------------------

// EnqueueTarget pushes t to the tail and commits the queue blob.
func (m *Manager) EnqueueTarget(t model.BackupTarget) error {
	if err := m.reload(); err != nil {
		return err
	}
	m.queue.Enqueue(t)
	if err := m.store.SaveQueue(m.queue); err != nil {
		return err
	}
	m.log.Info("enqueued backup target", "dataset", t.Dataset, "backup_type", t.BackupType)
	return nil
}

// DequeueTarget pops the head and commits the queue blob. It fails with
// errs.ErrEmptyQueue if the queue has no target.
func (m *Manager) DequeueTarget() (model.BackupTarget, error) {
	if err := m.reload(); err != nil {
		return model.BackupTarget{}, err
	}
	t, ok := m.queue.Dequeue()
	if !ok {
		return model.BackupTarget{}, errs.ErrEmptyQueue
	}
	if err := m.store.SaveQueue(m.queue); err != nil {
		return model.BackupTarget{}, err
	}
	return t, nil
}

// -------------------- active task lifecycle --------------------

// EnsureActiveTask initializes a freshly all-zero/empty active task for the
// given total split count if one is not already in progress. Safe to call
// repeatedly (idempotent): it is a no-op once the active task has a base
// snapshot, ref snapshot or split count set.
func (m *Manager) EnsureActiveTask(base, ref string, splitQty uint64) error {
	if err := m.reload(); err != nil {
		return err
	}
	if m.active.BaseSnapshot != "" || m.active.RefSnapshot != "" || m.active.SplitQty != 0 {
		return nil
	}
	m.active = model.ActiveBackupTask{
		BaseSnapshot: base,
		RefSnapshot:  ref,
		SplitQty:     splitQty,
	}
	return m.store.SaveActiveTask(m.active)
}

// SetSplitQty records the total expected split count for the active task.
// split_qty is only knowable once the exported file exists on disk (its
// size determines how many fixed-size chunks it splits into), so it is set
// once, right after SnapshotTest completes and before the first Split — not
// at EnsureActiveTask time. Idempotent: a no-op once already set to a
// non-zero value, so a crash-and-resume between SnapshotTest and the first
// Split never re-derives (and potentially disagrees on) the total.
func (m *Manager) SetSplitQty(n uint64) error {
	if err := m.reload(); err != nil {
		return err
	}
	if m.active.SplitQty != 0 {
		return nil
	}
	m.active.SplitQty = n
	return m.store.SaveActiveTask(m.active)
}

// ClearActiveTask resets the active task to its zero value. Called once a
// task reaches Done, immediately after the outer loop dequeues it.
func (m *Manager) ClearActiveTask() error {
	if err := m.reload(); err != nil {
		return err
	}
	m.active.Reset()
	return m.store.SaveActiveTask(m.active)
}

// -------------------- stage-progress mutators --------------------
//
// Each mutator commits before returning. A mutator that cannot commit
// propagates the I/O error and leaves the in-memory state mutated; the next
// RestoreStatus call re-reads from disk and reconciles.

func (m *Manager) UpdateFullHash(h model.Hash) error {
	if err := m.reload(); err != nil {
		return err
	}
	m.active.FullHash = h
	return m.store.SaveActiveTask(m.active)
}

func (m *Manager) UpdateStageStatusSnapshotExported(name string) error {
	if err := m.reload(); err != nil {
		return err
	}
	m.active.Progress.SnapshotExportedName = name
	return m.store.SaveActiveTask(m.active)
}

func (m *Manager) UpdateStageStatusSnapshotTested(tested bool) error {
	if err := m.reload(); err != nil {
		return err
	}
	if tested && m.active.Progress.SnapshotExportedName == "" {
		return fmt.Errorf("%w: cannot mark snapshot tested before export", errs.ErrPreconditionMissing)
	}
	m.active.Progress.SnapshotTested = tested
	return m.store.SaveActiveTask(m.active)
}

// UpdateStageStatusSplitHashes appends h to the split hash sequence.
func (m *Manager) UpdateStageStatusSplitHashes(h model.Hash) error {
	if err := m.reload(); err != nil {
		return err
	}
	if uint64(len(m.active.Progress.SplitHashes)) >= m.active.SplitQty {
		return errs.CorruptState("split")
	}
	m.active.Progress.SplitHashes = append(m.active.Progress.SplitHashes, h)
	return m.store.SaveActiveTask(m.active)
}

// updateCounter sets the named per-split counter, enforcing I3/I4: the new
// value must not exceed the number of produced splits, and must not move
// backwards.
func (m *Manager) updateCounter(stage model.BackupTaskStage, n uint64) error {
	if err := m.reload(); err != nil {
		return err
	}
	produced := uint64(len(m.active.Progress.SplitHashes))
	if n > produced {
		return errs.CorruptState(fmt.Sprintf("Error stage %s", stage))
	}
	if n < m.active.Progress.Counter(stage) {
		return fmt.Errorf("%w: %s counter must not move backwards", errs.ErrCorruptState, stage)
	}
	m.active.Progress.SetCounter(stage, n)
	return m.store.SaveActiveTask(m.active)
}

func (m *Manager) UpdateStageStatusCompressed(n uint64) error { return m.updateCounter(model.StageCompress, n) }
func (m *Manager) UpdateStageStatusEncrypted(n uint64) error  { return m.updateCounter(model.StageEncrypt, n) }
func (m *Manager) UpdateStageStatusUploaded(n uint64) error   { return m.updateCounter(model.StageUpload, n) }
func (m *Manager) UpdateStageStatusCleanup(n uint64) error    { return m.updateCounter(model.StageCleanup, n) }

func (m *Manager) UpdateStageStatusVerified(v bool) error {
	if err := m.reload(); err != nil {
		return err
	}
	if v {
		total := m.active.SplitQty
		p := m.active.Progress
		if uint64(len(p.SplitHashes)) != total || p.Compressed != total || p.Encrypted != total || p.Uploaded != total || p.Cleanup != total {
			return fmt.Errorf("%w: verified requires all counters == split_qty", errs.ErrCorruptState)
		}
	}
	m.active.Progress.Verified = v
	return m.store.SaveActiveTask(m.active)
}
