package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/fade"
)

// Manager owns the ambient track player and its file watcher, and hands the
// fade controller a sink that respects the audio configuration.
type Manager struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  *Player
	watcher *Watcher
	enabled bool

	// Last state from the controller, replayed when audio is re-enabled
	last fade.State
}

// NewManager creates a new audio manager.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	player := NewPlayer(cfg.TrackPath(), logger)

	return &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(player, logger),
		enabled: cfg.Audio.Enabled,
	}
}

// Start preloads the track and starts the file watcher.
func (m *Manager) Start(ctx context.Context) error {
	if !m.Enabled() {
		m.logger.Info("audio disabled")
		return nil
	}

	track := m.player.Track()
	if _, err := os.Stat(track); err != nil {
		m.logger.Warn("ambient track not found", "path", track)
	} else if err := m.player.Preload(track); err != nil {
		m.logger.Warn("failed to preload track", "path", track, "error", err)
	}

	m.watcher.Watch(track)
	if err := m.watcher.Start(ctx); err != nil {
		return err
	}

	m.logger.Info("audio manager started", "track", track)
	return nil
}

// Stop shuts down the audio manager.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// Enabled reports whether playback is enabled.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Apply implements fade.Sink. States are dropped while audio is disabled.
func (m *Manager) Apply(s fade.State) {
	m.mu.Lock()
	m.last = s
	enabled := m.enabled
	m.mu.Unlock()

	if enabled {
		m.player.Apply(s)
	}
}

// UpdateConfig applies a hot-reloaded configuration.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	wasEnabled := m.enabled
	m.enabled = cfg.Audio.Enabled
	last := m.last
	m.mu.Unlock()

	if wasEnabled && !cfg.Audio.Enabled {
		// Silence whatever is playing.
		m.player.Apply(fade.State{})
	}

	track := cfg.TrackPath()
	if track != m.player.Track() {
		m.player.SetTrack(track)
		m.watcher.Watch(track)
	}

	if !wasEnabled && cfg.Audio.Enabled {
		m.player.Apply(last)
	}

	m.logger.Debug("audio manager config updated", "enabled", cfg.Audio.Enabled, "track", track)
}
