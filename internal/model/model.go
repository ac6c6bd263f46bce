// Package model defines the persisted records that make up a backup task's
// durable state: the target queue, the active task snapshot, and the
// latest-snapshot map. Nothing in this package performs I/O; it is the
// vocabulary the status manager and persistence store operate on.
package model

import "time"

// BackupType distinguishes independent (Full) backups from delta backups
// taken against a base snapshot (Diff, Incr).
type BackupType string

const (
	BackupTypeFull  BackupType = "full"
	BackupTypeDiff  BackupType = "diff"
	BackupTypeIncr  BackupType = "incr"
)

// DefaultBackupType is used when a target is constructed without an
// explicit type.
const DefaultBackupType = BackupTypeFull

// BackupTaskStage is the ordered set of stages a task passes through.
// There are no backward transitions within a task.
type BackupTaskStage string

const (
	StageSnapshotExport BackupTaskStage = "snapshot_export"
	StageSnapshotTest   BackupTaskStage = "snapshot_test"
	StageSplit          BackupTaskStage = "split"
	StageCompress       BackupTaskStage = "compress"
	StageEncrypt        BackupTaskStage = "encrypt"
	StageUpload         BackupTaskStage = "upload"
	StageCleanup        BackupTaskStage = "cleanup"
	StageVerify         BackupTaskStage = "verify"
	StageDone           BackupTaskStage = "done"
)

// stageOrder fixes the linear sequence used by the per-split resume loop in
// restore_status (compressed -> encrypted -> uploaded -> cleanup).
var stageOrder = []BackupTaskStage{StageCompress, StageEncrypt, StageUpload, StageCleanup}

// StageOrder returns the fixed per-split stage sequence.
func StageOrder() []BackupTaskStage {
	out := make([]BackupTaskStage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Hash is an opaque content digest. Equality is byte-equal; the identity of
// the hash algorithm that produced it is a deployment-wide constant that the
// orchestrator never records (see internal/transform/hash).
type Hash []byte

// Equal reports whether two hashes are byte-equal. Two empty/nil hashes are
// considered equal so zero-value comparisons behave predictably.
func (h Hash) Equal(other Hash) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the hash has no content.
func (h Hash) IsEmpty() bool { return len(h) == 0 }

// BackupTarget is a unit of work: immutable once enqueued.
type BackupTarget struct {
	Date       time.Time  `msgpack:"date"`
	BackupType BackupType `msgpack:"backup_type"`
	Dataset    string     `msgpack:"dataset"`
}

// BackupTargetQueue is an ordered, FIFO sequence of targets. Only the head is
// ever executed; tail mutation is limited to enqueue.
type BackupTargetQueue struct {
	Targets []BackupTarget `msgpack:"targets"`
}

// Empty reports whether the queue has no runnable target.
func (q *BackupTargetQueue) Empty() bool { return q == nil || len(q.Targets) == 0 }

// Head returns the front of the queue without removing it.
func (q *BackupTargetQueue) Head() (BackupTarget, bool) {
	if q.Empty() {
		return BackupTarget{}, false
	}
	return q.Targets[0], true
}

// Enqueue appends t to the tail.
func (q *BackupTargetQueue) Enqueue(t BackupTarget) {
	q.Targets = append(q.Targets, t)
}

// Dequeue removes and returns the head. ok is false on an empty queue.
func (q *BackupTargetQueue) Dequeue() (t BackupTarget, ok bool) {
	if q.Empty() {
		return BackupTarget{}, false
	}
	t = q.Targets[0]
	q.Targets = q.Targets[1:]
	return t, true
}

// BackupStageStatus is the per-task progress record. Counters are monotone
// non-decreasing within the life of a task (I4) and must never exceed
// len(SplitHashes) (I3).
type BackupStageStatus struct {
	SnapshotExportedName string `msgpack:"snapshot_exported_name"`
	SnapshotTested       bool   `msgpack:"snapshot_tested"`
	SplitHashes          []Hash `msgpack:"split_hashes"`
	Compressed           uint64 `msgpack:"compressed"`
	Encrypted            uint64 `msgpack:"encrypted"`
	Uploaded             uint64 `msgpack:"uploaded"`
	Cleanup              uint64 `msgpack:"cleanup"`
	Verified             bool   `msgpack:"verified"`
}

// Counter returns the current value of the named per-split stage counter.
// Only StageCompress/StageEncrypt/StageUpload/StageCleanup are valid.
func (s *BackupStageStatus) Counter(stage BackupTaskStage) uint64 {
	switch stage {
	case StageCompress:
		return s.Compressed
	case StageEncrypt:
		return s.Encrypted
	case StageUpload:
		return s.Uploaded
	case StageCleanup:
		return s.Cleanup
	default:
		return 0
	}
}

// SetCounter sets the named per-split stage counter.
func (s *BackupStageStatus) SetCounter(stage BackupTaskStage, n uint64) {
	switch stage {
	case StageCompress:
		s.Compressed = n
	case StageEncrypt:
		s.Encrypted = n
	case StageUpload:
		s.Uploaded = n
	case StageCleanup:
		s.Cleanup = n
	}
}

// ActiveBackupTask is the singleton in-flight pipeline state for the
// head-of-queue target. At most one exists at any time.
type ActiveBackupTask struct {
	BaseSnapshot string            `msgpack:"base_snapshot"`
	RefSnapshot  string            `msgpack:"ref_snapshot"`
	SplitQty     uint64            `msgpack:"split_qty"`
	Progress     BackupStageStatus `msgpack:"progress"`
	FullHash     Hash              `msgpack:"full_hash"`
}

// Reset clears the task back to its freshly-initialized, all-zero/empty form.
func (t *ActiveBackupTask) Reset() {
	*t = ActiveBackupTask{}
}

// LatestSnapshotInfo records when a dataset/backup-type pair was last
// snapshotted and under what name. No core write path mutates this map; it
// is read-through state owned by the scheduler layer (see DESIGN.md).
type LatestSnapshotInfo struct {
	Update   time.Time `msgpack:"update"`
	Snapshot string    `msgpack:"snapshot"`
}

// LatestSnapshotMap maps dataset name -> backup type -> latest snapshot info.
type LatestSnapshotMap struct {
	Datasets map[string]map[BackupType]LatestSnapshotInfo `msgpack:"datasets"`
}

// Get looks up the latest snapshot info for a dataset/type pair.
func (m *LatestSnapshotMap) Get(dataset string, bt BackupType) (LatestSnapshotInfo, bool) {
	if m == nil || m.Datasets == nil {
		return LatestSnapshotInfo{}, false
	}
	byType, ok := m.Datasets[dataset]
	if !ok {
		return LatestSnapshotInfo{}, false
	}
	info, ok := byType[bt]
	return info, ok
}

// Set records the latest snapshot info for a dataset/type pair.
func (m *LatestSnapshotMap) Set(dataset string, bt BackupType, info LatestSnapshotInfo) {
	if m.Datasets == nil {
		m.Datasets = map[string]map[BackupType]LatestSnapshotInfo{}
	}
	byType, ok := m.Datasets[dataset]
	if !ok {
		byType = map[BackupType]LatestSnapshotInfo{}
		m.Datasets[dataset] = byType
	}
	byType[bt] = info
}
