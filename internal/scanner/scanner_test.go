package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkFiltersByExtensionAndHiddenAndExcludedDirs(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.jpg"), "a")
	mustWrite(t, filepath.Join(root, "notes.txt"), "skip me, wrong extension")
	mustWrite(t, filepath.Join(root, ".hidden.jpg"), "skip me, hidden")
	mustWrite(t, filepath.Join(root, "@eaDir", "thumb.jpg"), "skip me, excluded dir")
	mustWrite(t, filepath.Join(root, "sub", "b.png"), "b")

	opts := Options{
		Root:         root,
		Extensions:   map[string]bool{".jpg": true, ".png": true},
		ExcludedDirs: map[string]bool{"@eaDir": true},
		SkipHidden:   true,
	}

	var got []string
	stats, err := Walk(context.Background(), opts, func(_ context.Context, d Descriptor) error {
		got = append(got, d.Basename)
		return nil
	}, zap.NewNop())

	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"a.jpg", "b.png"}, got)
	assert.EqualValues(t, 2, stats.FilesYielded)
}

func TestWalkRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "top.jpg"), "top")
	mustWrite(t, filepath.Join(root, "a", "nested.jpg"), "nested")
	mustWrite(t, filepath.Join(root, "a", "b", "deep.jpg"), "deep")

	opts := Options{
		Root:       root,
		Extensions: map[string]bool{".jpg": true},
		MaxDepth:   1,
	}

	var got []string
	_, err := Walk(context.Background(), opts, func(_ context.Context, d Descriptor) error {
		got = append(got, d.Basename)
		return nil
	}, zap.NewNop())

	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"nested.jpg", "top.jpg"}, got)
}

func TestWalkCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		mustWrite(t, filepath.Join(root, "f"+string(rune('0'+i))+".jpg"), "x")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := Options{Root: root, Extensions: map[string]bool{".jpg": true}}
	_, err := Walk(ctx, opts, func(_ context.Context, d Descriptor) error {
		return nil
	}, zap.NewNop())

	require.Error(t, err)
}

func TestSortedExtensions(t *testing.T) {
	got := SortedExtensions(map[string]bool{".png": true, ".jpg": true, ".heic": true})
	assert.Equal(t, []string{".heic", ".jpg", ".png"}, got)
}
