package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFileMatchesSHA256(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.bin")
	content := make([]byte, ChunkSize*2+17) // spans multiple chunks plus a partial one
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(p, content, 0o644))

	want := sha256.Sum256(content)
	got, err := HashFile(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestHashFileReportsProgress(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.bin")
	content := make([]byte, ChunkSize+10)
	require.NoError(t, os.WriteFile(p, content, 0o644))

	var calls int
	var lastBytesRead int64
	_, err := HashFile(context.Background(), p, func(pr Progress) {
		calls++
		lastBytesRead = pr.BytesRead
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 2)
	assert.EqualValues(t, len(content), lastBytesRead)
}

func TestHashFileMissingPath(t *testing.T) {
	_, err := HashFile(context.Background(), "/nonexistent/path/x.bin", nil)
	require.Error(t, err)
}

func TestHashFileCancellation(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(p, make([]byte, ChunkSize*3), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := HashFile(ctx, p, nil)
	require.Error(t, err)
}
