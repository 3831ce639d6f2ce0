package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Status describes the currently loaded configuration.
type Status struct {
	Path        string
	Checksum    string
	LoadedAt    time.Time
	ReloadCount int64
	FromFile    bool
}

// Manager handles configuration loading and hot-reload.
// It uses atomic pointer swaps to ensure thread-safe config updates.
type Manager struct {
	config   atomic.Pointer[Config]
	status   atomic.Pointer[Status]
	path     string
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	onChange []func(*Config)
	logger   *slog.Logger
}

// NewManager loads path and creates a manager. A missing file is not an
// error: defaults are used and Watch becomes a no-op.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		path:   path,
		logger: logger,
	}

	cfg, sum, err := loadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		m.store(DefaultConfig(), "")
	case err != nil:
		return nil, err
	default:
		m.store(cfg, sum)
	}

	return m, nil
}

// Get returns the current configuration.
// This is safe to call concurrently from multiple goroutines.
func (m *Manager) Get() *Config {
	return m.config.Load()
}

// Status returns metadata about the loaded configuration.
func (m *Manager) Status() Status {
	return *m.status.Load()
}

// OnChange registers a callback to be invoked when configuration changes.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Reload re-reads the file and swaps it in when valid. On error the current
// configuration is kept.
func (m *Manager) Reload() error {
	newCfg, sum, err := loadFile(m.path)
	if err != nil {
		return err
	}

	m.store(newCfg, sum)

	m.mu.Lock()
	listeners := append([]func(*Config){}, m.onChange...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(newCfg)
	}
	return nil
}

// Watch starts watching the configuration file for changes.
// It debounces rapid changes and reloads configuration atomically.
func (m *Manager) Watch(ctx context.Context) error {
	if !m.Status().FromFile {
		m.logger.Info("config file not found, hot reload disabled", "path", m.path)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	if err := watcher.Add(m.path); err != nil {
		_ = watcher.Close()
		return err
	}

	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	const debounceDelay = 500 * time.Millisecond
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			_ = m.watcher.Close()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, m.reload)
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "error", err)
		}
	}
}

func (m *Manager) reload() {
	if err := m.Reload(); err != nil {
		m.logger.Error("failed to reload config, keeping current", "error", err)
		return
	}
	m.logger.Info("configuration reloaded successfully", "checksum", m.Status().Checksum)
}

// store swaps in cfg. An empty checksum means defaults without a file.
func (m *Manager) store(cfg *Config, checksum string) {
	var count int64 = 1
	if prev := m.status.Load(); prev != nil {
		count = prev.ReloadCount + 1
	}

	m.config.Store(cfg)
	m.status.Store(&Status{
		Path:        m.path,
		Checksum:    checksum,
		LoadedAt:    time.Now(),
		ReloadCount: count,
		FromFile:    checksum != "",
	})
}

// Close stops the configuration watcher.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
