package store

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/duskvault/snaprelay/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	st, err := New(fs, "/var/lib/snaprelay/state")
	require.NoError(t, err)
	return st
}

func TestLoadQueueDefaultsToEmptyWhenMissing(t *testing.T) {
	st := newTestStore(t)
	q, err := st.LoadQueue()
	require.NoError(t, err)
	require.True(t, q.Empty())
}

func TestSaveLoadQueueRoundTrip(t *testing.T) {
	st := newTestStore(t)
	q := model.BackupTargetQueue{}
	q.Enqueue(model.BackupTarget{Dataset: "tank/data", BackupType: model.BackupTypeFull, Date: time.Unix(0, 0).UTC()})
	q.Enqueue(model.BackupTarget{Dataset: "tank/data", BackupType: model.BackupTypeIncr, Date: time.Unix(100, 0).UTC()})

	require.NoError(t, st.SaveQueue(q))

	got, err := st.LoadQueue()
	require.NoError(t, err)
	require.Equal(t, q, got)
}

func TestSaveLoadActiveTaskRoundTrip(t *testing.T) {
	st := newTestStore(t)
	task := model.ActiveBackupTask{
		BaseSnapshot: "tank/data@2024-01-01",
		RefSnapshot:  "tank/data@2024-01-02",
		SplitQty:     3,
		FullHash:     model.Hash{1, 2, 3},
		Progress: model.BackupStageStatus{
			SnapshotExportedName: "/tmp/export.snap",
			SnapshotTested:       true,
			SplitHashes:          []model.Hash{{1}, {2}},
			Compressed:           1,
		},
	}

	require.NoError(t, st.SaveActiveTask(task))

	got, err := st.LoadActiveTask()
	require.NoError(t, err)
	require.Equal(t, task, got)
}

func TestLoadActiveTaskDefaultsToZeroValueWhenMissing(t *testing.T) {
	st := newTestStore(t)
	got, err := st.LoadActiveTask()
	require.NoError(t, err)
	require.Equal(t, model.ActiveBackupTask{}, got)
}

func TestSaveLoadLatestSnapshotMapRoundTrip(t *testing.T) {
	st := newTestStore(t)
	m := model.LatestSnapshotMap{}
	m.Set("tank/data", model.BackupTypeFull, model.LatestSnapshotInfo{
		Update:   time.Unix(500, 0).UTC(),
		Snapshot: "tank/data@2024-01-01",
	})

	require.NoError(t, st.SaveLatestSnapshotMap(m))

	got, err := st.LoadLatestSnapshotMap()
	require.NoError(t, err)
	info, ok := got.Get("tank/data", model.BackupTypeFull)
	require.True(t, ok)
	require.Equal(t, "tank/data@2024-01-01", info.Snapshot)
}

func TestSaveIsAtomicNoTempFileLeftBehind(t *testing.T) {
	fs := afero.NewMemMapFs()
	st, err := New(fs, "/state")
	require.NoError(t, err)

	require.NoError(t, st.SaveQueue(model.BackupTargetQueue{}))

	exists, err := afero.Exists(fs, "/state/target_queue.bin"+tmpSuffix)
	require.NoError(t, err)
	require.False(t, exists, "temp file should be renamed away, not left behind")

	exists, err = afero.Exists(fs, "/state/target_queue.bin")
	require.NoError(t, err)
	require.True(t, exists)
}
