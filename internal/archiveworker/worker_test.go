package archiveworker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/hub"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestHashFileDeterministic(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "a.txt", "hello world")
	h1, err := hashFile(p)
	require.NoError(t, err)
	h2, err := hashFile(p)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}

func TestCopyThenDeleteMovesContent(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := writeTempFile(t, srcDir, "a.txt", "payload")
	dst := filepath.Join(dstDir, "a.txt")

	require.NoError(t, copyThenDelete(src, dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source should be removed after copy")

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestDeleteOneWithDryRunSkipsOnHashMismatch(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "a.jpg", "current content")
	w := New(nil, Config{TrashRoot: t.TempDir()}, zap.NewNop())

	res := w.deleteOneWithDryRun(hub.DeleteFilePayload{
		JobID: uuid.New(), FileID: uuid.New(), Path: p, Hash: "stale-hash",
	}, false)

	assert.True(t, res.Skipped)
	assert.False(t, res.Success)
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("file should not have been touched: %v", err)
	}
}

func TestDeleteOneWithDryRunHonorsDryRun(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "a.jpg", "content")
	actualHash, err := hashFile(p)
	require.NoError(t, err)

	w := New(nil, Config{TrashRoot: t.TempDir()}, zap.NewNop())
	res := w.deleteOneWithDryRun(hub.DeleteFilePayload{
		JobID: uuid.New(), FileID: uuid.New(), Path: p, Hash: actualHash,
	}, true)

	assert.True(t, res.Success)
	assert.True(t, res.WasDryRun)
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("dry run must not remove the file: %v", err)
	}
}

func TestDeleteOneWithDryRunMovesToTrash(t *testing.T) {
	srcDir := t.TempDir()
	trashRoot := t.TempDir()
	p := writeTempFile(t, srcDir, "a.jpg", "content")
	actualHash, err := hashFile(p)
	require.NoError(t, err)

	w := New(nil, Config{TrashRoot: trashRoot}, zap.NewNop())
	res := w.deleteOneWithDryRun(hub.DeleteFilePayload{
		JobID: uuid.New(), FileID: uuid.New(), Path: p, Hash: actualHash,
	}, false)

	assert.True(t, res.Success)
	assert.False(t, res.WasDryRun)
	assert.NotEmpty(t, res.ArchivePath)
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("original file should be gone: %v", err)
	}
	if _, err := os.Stat(res.ArchivePath); err != nil {
		t.Fatalf("archived file should exist at reported path: %v", err)
	}
}
