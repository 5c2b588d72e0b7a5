package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/folio/internal/config"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// ConfigWatcher watches the config file for changes and validates new configs.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	// Path to watch
	configPath string

	// Current valid config
	currentConfig *config.Config

	debounce time.Duration

	// Callbacks
	onReloadCallback func(newConfig *config.Config)
	onErrorCallback  func(err error)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewConfigWatcher creates a new ConfigWatcher for path. An empty path uses
// the default config path.
func NewConfigWatcher(path string, logger *slog.Logger) *ConfigWatcher {
	if path == "" {
		path = config.ConfigPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		logger:     logger,
		configPath: path,
		debounce:   DefaultDebounce,
	}
}

// SetDebounce sets the quiet period before a change is reloaded.
func (w *ConfigWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// SetReloadCallback sets the callback to invoke when config is successfully reloaded.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback to invoke when config reload fails validation.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins watching the config file for changes.
func (w *ConfigWatcher) Start(ctx context.Context, initialConfig *config.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory; Save and most editors replace the file.
	if err := watcher.Add(filepath.Dir(w.configPath)); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.currentConfig = initialConfig
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.watchLoop(ctx, w.debounce)

	w.logger.Debug("config watcher started", "path", w.configPath)
	return nil
}

// Stop stops watching the config file.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for goroutine to finish
	<-w.doneCh
	_ = w.watcher.Close()
	w.logger.Debug("config watcher stopped")
}

// GetCurrentConfig returns the current valid configuration.
func (w *ConfigWatcher) GetCurrentConfig() *config.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentConfig
}

func (w *ConfigWatcher) watchLoop(ctx context.Context, debounce time.Duration) {
	defer close(w.doneCh)

	filename := filepath.Base(w.configPath)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = time.After(debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

// reload loads and validates the config file, keeping the current config on
// failure.
func (w *ConfigWatcher) reload() {
	w.mu.RLock()
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	w.mu.RUnlock()

	w.logger.Debug("config file changed", "path", w.configPath)

	newConfig, err := config.LoadConfig(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}
	newConfig.ApplyEnv()

	w.mu.Lock()
	w.currentConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded successfully")
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
}
