package cmn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutConfigFileAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, 250, cfg.Indexing.BatchSize)
	assert.Equal(t, 8, cfg.Indexing.Parallelism)
	assert.Equal(t, 300, cfg.Thumbnail.MaxWidth)
	assert.Equal(t, 85, cfg.Thumbnail.JPEGQuality)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "ws://localhost:8080", cfg.Hub.URL)
	assert.Equal(t, "/var/lib/photoindex/trash", cfg.Archive.TrashRoot)
	assert.Equal(t, 5, cfg.Duplicate.ConflictThreshold)
	assert.Contains(t, cfg.Scanner.Extensions, ".heic")
	assert.Contains(t, cfg.Scanner.ExcludedDirs, "@eaDir")
}

func TestLoadRejectsUnreadableConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Equal(t, KindIO, err.(*Error).Kind)
}
