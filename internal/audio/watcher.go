package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is how often the track file is checked.
const DefaultPollInterval = 2 * time.Second

// stamp identifies one version of the track file on disk.
type stamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func stampOf(path string) stamp {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}
	}
	return stamp{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// Watcher polls the track file and refreshes the player when it is
// replaced, rewritten or reappears after removal.
type Watcher struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	player   *Player
	path     string
	last     stamp
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a track watcher. It does nothing until Watch and Start
// are called.
func NewWatcher(player *Player, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger:   logger,
		player:   player,
		interval: DefaultPollInterval,
	}
}

// SetPollInterval changes the polling interval. Takes effect on the next Start.
func (w *Watcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interval = interval
}

// Watch replaces the watched path. The file's current version is taken as
// the baseline.
func (w *Watcher) Watch(path string) {
	path = expandPath(path)
	current := stampOf(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.path = path
	w.last = current
}

// Path returns the watched path.
func (w *Watcher) Path() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.path
}

// Start polls the track until ctx is done or Stop is called. Starting a
// running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.poll(ctx, w.interval, w.done)

	w.logger.Debug("track watcher started", "interval", w.interval)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Debug("track watcher stopped")
}

// IsRunning reports whether the watcher is polling.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cancel != nil
}

func (w *Watcher) poll(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// checkForChanges compares the track with the last seen version and
// refreshes the player when a new version is readable. It reports whether
// the player was refreshed.
func (w *Watcher) checkForChanges() bool {
	w.mu.Lock()
	path, previous := w.path, w.last
	if path == "" {
		w.mu.Unlock()
		return false
	}
	current := stampOf(path)
	w.last = current
	w.mu.Unlock()

	switch {
	case !current.exists:
		if previous.exists {
			w.logger.Warn("ambient track removed", "path", path)
		}
		return false
	case current == previous:
		return false
	}

	w.logger.Debug("track changed, reloading", "path", path)
	if w.player != nil {
		w.player.Refresh(path)
	}
	return true
}
