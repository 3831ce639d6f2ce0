package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerStatus(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8080\n")

	mgr, err := NewManager(path, discardLogger())
	require.NoError(t, err)

	status := mgr.Status()
	assert.Equal(t, path, status.Path)
	assert.Len(t, status.Checksum, 64)
	assert.False(t, status.LoadedAt.IsZero())
	assert.Equal(t, int64(1), status.ReloadCount)
	assert.True(t, status.FromFile)
}

func TestManager_MissingFile(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "none.yaml"), discardLogger())
	require.NoError(t, err)

	assert.False(t, mgr.Status().FromFile)
	assert.Equal(t, 8080, mgr.Get().Server.Port)
	assert.NoError(t, mgr.Watch(context.Background()))
	assert.NoError(t, mgr.Close())
}

func TestManager_InvalidFile(t *testing.T) {
	_, err := NewManager(writeConfigFile(t, "server:\n  port: 0\n"), discardLogger())
	assert.Error(t, err)
}

func TestManagerReload(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8080\n")
	mgr, err := NewManager(path, discardLogger())
	require.NoError(t, err)

	var notified atomic.Int32
	mgr.OnChange(func(cfg *Config) {
		assert.Equal(t, "tamil", cfg.Gateway.Defaults.Language)
		notified.Add(1)
	})

	before := mgr.Status()
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\ngateway:\n  defaults:\n    language: tamil\n"), 0o644))
	require.NoError(t, mgr.Reload())

	after := mgr.Status()
	assert.NotEqual(t, before.Checksum, after.Checksum)
	assert.Equal(t, before.ReloadCount+1, after.ReloadCount)
	assert.Equal(t, 9090, mgr.Get().Server.Port)
	assert.Equal(t, int32(1), notified.Load())
}

func TestManagerReload_KeepsCurrentOnError(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8080\n")
	mgr, err := NewManager(path, discardLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -5\n"), 0o644))
	assert.Error(t, mgr.Reload())
	assert.Equal(t, 8080, mgr.Get().Server.Port)
	assert.Equal(t, int64(1), mgr.Status().ReloadCount)
}

func TestManagerWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfigFile(t, "gateway:\n  retry_count: 1\n")
	mgr, err := NewManager(path, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, mgr.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  retry_count: 4\n"), 0o644))

	assert.Eventually(t, func() bool {
		return mgr.Get().Gateway.RetryCount == 4
	}, 5*time.Second, 50*time.Millisecond)
}
