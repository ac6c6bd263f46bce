package backupmgr

import (
	"context"
	"fmt"
	"os"

	"github.com/duskvault/snaprelay/internal/model"
	"github.com/duskvault/snaprelay/internal/pkg/errs"
)

// runSnapshotExport drives the SnapshotExport stage: reads
// dataset/base/ref/temp_dir, calls exporter.Export, commits
// snapshot_exported_name.
func (m *Manager) runSnapshotExport(ctx context.Context, target model.BackupTarget) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}

	// Lifecycle: a freshly attended queue head gets an all-zero active
	// task. base/ref are not yet known on the very first attempt, so a
	// zero-value active task means "determine them now".
	base, ref := active.BaseSnapshot, active.RefSnapshot
	if base == "" && ref == "" {
		ref, err = m.latestSnapshotName(ctx, target.Dataset)
		if err != nil {
			return fmt.Errorf("%w: determine ref snapshot: %v", errs.ErrTransformer, err)
		}
		if target.BackupType != model.BackupTypeFull {
			base = m.priorSnapshotName(target.Dataset, target.BackupType)
		}
		if err := m.status.EnsureActiveTask(base, ref, 0); err != nil {
			return err
		}
	}

	path, err := m.exporter.Export(ctx, m.tempDir(target), target.Dataset, base, ref)
	if err != nil {
		return fmt.Errorf("%w: export snapshot: %v", errs.ErrTransformer, err)
	}
	return m.status.UpdateStageStatusSnapshotExported(path)
}

// runSnapshotTest drives the SnapshotTest row: verify the exported file,
// hash it as the task's full_hash, then (since the file's size is now
// knowable) fix split_qty for the lifetime of the task, and mark tested.
func (m *Manager) runSnapshotTest(ctx context.Context, target model.BackupTarget) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}
	path := active.Progress.SnapshotExportedName
	if path == "" {
		return fmt.Errorf("%w: snapshot_exported_name empty at SnapshotTest", errs.ErrPreconditionMissing)
	}

	if err := m.exporter.Verify(ctx, target.Dataset, path); err != nil {
		return fmt.Errorf("%w: verify exported snapshot: %v", errs.ErrTransformer, err)
	}

	m.hasher.Reset()
	if err := m.hasher.CalFile(ctx, path); err != nil {
		return fmt.Errorf("%w: hash exported snapshot: %v", errs.ErrTransformer, err)
	}
	if err := m.status.UpdateFullHash(m.hasher.GetDigest()); err != nil {
		return err
	}

	qty, err := m.splitQty(path)
	if err != nil {
		return fmt.Errorf("%w: determine split count: %v", errs.ErrTransformer, err)
	}
	if err := m.status.SetSplitQty(qty); err != nil {
		return err
	}

	return m.status.UpdateStageStatusSnapshotTested(true)
}

// runSplit drives the Split row: split(exported path, i), hash the split,
// append it to split_hashes.
func (m *Manager) runSplit(ctx context.Context, index uint64) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}
	exportedPath := active.Progress.SnapshotExportedName

	path, err := m.splitter.Split(ctx, exportedPath, index)
	if err != nil {
		return fmt.Errorf("%w: split index %d: %v", errs.ErrTransformer, index, err)
	}

	m.hasher.Reset()
	if err := m.hasher.CalFile(ctx, path); err != nil {
		return fmt.Errorf("%w: hash split %d: %v", errs.ErrTransformer, index, err)
	}
	return m.status.UpdateStageStatusSplitHashes(m.hasher.GetDigest())
}

// runCompress drives the Compress row: compress the split at index i,
// verify it, commit compressed = i+1.
func (m *Manager) runCompress(ctx context.Context, index uint64) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}
	input := splitPath(active.Progress.SnapshotExportedName, index, m.splitter.Extension)

	out, err := m.compressor.Compress(ctx, input)
	if err != nil {
		return fmt.Errorf("%w: compress split %d: %v", errs.ErrTransformer, index, err)
	}
	if err := m.compressor.Verify(ctx, out); err != nil {
		return fmt.Errorf("%w: verify compressed split %d: %v", errs.ErrTransformer, index, err)
	}
	return m.status.UpdateStageStatusCompressed(index + 1)
}

// runEncrypt drives the Encrypt stage, including the mandatory decrypt
// round-trip self-check required before trusting ciphertext enough to
// upload it.
func (m *Manager) runEncrypt(ctx context.Context, index uint64) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}
	input := withExt(splitPath(active.Progress.SnapshotExportedName, index, m.splitter.Extension), m.compressor.Extension())

	m.hasher.Reset()
	if err := m.hasher.CalFile(ctx, input); err != nil {
		return fmt.Errorf("%w: hash pre-encryption split %d: %v", errs.ErrTransformer, index, err)
	}
	original := append([]byte(nil), m.hasher.GetDigest()...)

	enc, err := m.encryptor.Encrypt(ctx, input)
	if err != nil {
		return fmt.Errorf("%w: encrypt split %d: %v", errs.ErrTransformer, index, err)
	}
	dec, err := m.encryptor.Decrypt(ctx, enc)
	if err != nil {
		return fmt.Errorf("%w: decrypt round-trip split %d: %v", errs.ErrTransformer, index, err)
	}

	m.hasher.Reset()
	if err := m.hasher.CalFile(ctx, dec); err != nil {
		return fmt.Errorf("%w: hash round-trip split %d: %v", errs.ErrTransformer, index, err)
	}
	if !model.Hash(original).Equal(m.hasher.GetDigest()) {
		return fmt.Errorf("%w: split %d round-trip hash mismatch", errs.ErrEncryptionIntegrity, index)
	}

	return m.status.UpdateStageStatusEncrypted(index + 1)
}

// runUpload drives the Upload row: upload the encrypted split to the
// remote destination, commit uploaded = i+1.
func (m *Manager) runUpload(ctx context.Context, target model.BackupTarget, index uint64) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}
	src := encryptedSplitPath(active.Progress.SnapshotExportedName, index, m.splitter.Extension, m.compressor.Extension(), m.encryptor.Extension())
	dst := remoteKey(target, index, m.splitter.Extension, m.compressor.Extension(), m.encryptor.Extension())

	tags := map[string]string{"dataset": target.Dataset, "backup_type": string(target.BackupType)}
	metadata := map[string]string{"split_index": fmt.Sprintf("%d", index)}
	if err := m.uploader.Upload(ctx, src, dst, tags, metadata); err != nil {
		return fmt.Errorf("%w: upload split %d: %v", errs.ErrTransformer, index, err)
	}
	return m.status.UpdateStageStatusUploaded(index + 1)
}

// runCleanup drives the Cleanup stage: unlink the encrypted file for split
// i (see DESIGN.md's Cleanup semantics decision), commit cleanup = i+1.
func (m *Manager) runCleanup(ctx context.Context, index uint64) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}
	path := encryptedSplitPath(active.Progress.SnapshotExportedName, index, m.splitter.Extension, m.compressor.Extension(), m.encryptor.Extension())
	if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: cleanup split %d: %v", errs.ErrTransformer, index, err)
	}
	return m.status.UpdateStageStatusCleanup(index + 1)
}

// runVerify drives the Verify stage. The current logic compares full_hash
// against the *last* split's hash rather than a composition over all
// splits — preserved as-is here, see DESIGN.md's Open Question decision.
func (m *Manager) runVerify(ctx context.Context) error {
	active, err := m.status.GetActiveTask()
	if err != nil {
		return err
	}
	hashes := active.Progress.SplitHashes
	if len(hashes) == 0 {
		return fmt.Errorf("%w: verify with no split hashes", errs.ErrPreconditionMissing)
	}
	last := hashes[len(hashes)-1]
	if !active.FullHash.Equal(last) {
		return fmt.Errorf("%w: full hash does not match last split hash", errs.ErrVerifyMismatch)
	}
	return m.status.UpdateStageStatusVerified(true)
}

func encryptedSplitPath(exportedPath string, index uint64, splitExt func(uint64) string, compressExt, encryptExt string) string {
	return withExt(withExt(splitPath(exportedPath, index, splitExt), compressExt), encryptExt)
}

func remoteKey(target model.BackupTarget, index uint64, splitExt func(uint64) string, compressExt, encryptExt string) string {
	base := fmt.Sprintf("%s/%s_%s", target.Dataset, target.BackupType, target.Date.Format("2006-01-02"))
	return encryptedSplitPath(base, index, splitExt, compressExt, encryptExt)
}

