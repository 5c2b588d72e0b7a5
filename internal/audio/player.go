package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/jmylchreest/folio/internal/fade"
)

// Player loops a single track and follows the fade controller's state.
// Pausing keeps the playback position, so the loop resumes where it stopped.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Whether speaker has been initialized
	initialized bool

	// Sample rate for the speaker
	sampleRate beep.SampleRate

	// Current track and its live stream (nil until first played)
	track string
	ctrl  *beep.Ctrl
	vol   *effects.Volume
	state fade.State

	// Decoded track cache
	cache      map[string]*beep.Buffer
	cacheMutex sync.RWMutex
}

// NewPlayer creates a new audio player for the given track.
func NewPlayer(track string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}

	return &Player{
		logger:     logger,
		track:      track,
		sampleRate: beep.SampleRate(44100),
		cache:      make(map[string]*beep.Buffer),
	}
}

// Apply implements fade.Sink.
func (p *Player) Apply(s fade.State) {
	p.mu.Lock()
	p.state = s
	ctrl, vol, track := p.ctrl, p.vol, p.track
	p.mu.Unlock()

	if ctrl == nil {
		if !s.Playing {
			return
		}
		if err := p.start(track, s); err != nil {
			p.logger.Warn("failed to start ambient track", "path", track, "error", err)
		}
		return
	}

	speaker.Lock()
	ctrl.Paused = !s.Playing
	setVolume(vol, s.Volume)
	speaker.Unlock()
}

// State returns the last state applied to the player.
func (p *Player) State() fade.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Track returns the path of the current track.
func (p *Player) Track() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track
}

// start begins looping track at the state's volume.
func (p *Player) start(track string, s fade.State) error {
	buffer, err := p.bufferFor(track)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl != nil || p.track != track {
		// Raced with another start or a track change.
		return nil
	}

	streamer := beep.Loop(-1, buffer.Streamer(0, buffer.Len()))
	if buffer.Format().SampleRate != p.sampleRate {
		streamer = beep.Resample(4, buffer.Format().SampleRate, p.sampleRate, streamer)
	}

	vol := &effects.Volume{Streamer: streamer, Base: 2}
	setVolume(vol, s.Volume)
	ctrl := &beep.Ctrl{Streamer: vol, Paused: !s.Playing}

	p.vol = vol
	p.ctrl = ctrl
	speaker.Play(ctrl)

	p.logger.Debug("ambient track started", "path", track, "volume", s.Volume)
	return nil
}

// SetTrack switches to another track. If the old track was playing, the new
// one starts at the current state.
func (p *Player) SetTrack(track string) {
	p.mu.Lock()
	if track == p.track && p.ctrl != nil {
		p.mu.Unlock()
		return
	}
	p.track = track
	p.stopLocked()
	state := p.state
	p.mu.Unlock()

	if state.Playing {
		p.Apply(state)
	}
}

// Refresh drops the cached copy of path and restarts playback if it is the
// current track.
func (p *Player) Refresh(path string) {
	p.InvalidateCache(path)

	p.mu.Lock()
	if path != p.track {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	state := p.state
	p.mu.Unlock()

	if state.Playing {
		p.Apply(state)
	}
}

// stopLocked removes the live stream from the speaker. Caller holds mu.
func (p *Player) stopLocked() {
	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Streamer = nil
	speaker.Unlock()
	p.ctrl = nil
	p.vol = nil
}

// Preload decodes a track into the cache for faster playback.
func (p *Player) Preload(path string) error {
	_, err := p.bufferFor(path)
	if err == nil {
		p.logger.Debug("preloaded track", "path", path)
	}
	return err
}

// bufferFor returns the decoded track, loading it on a cache miss.
func (p *Player) bufferFor(path string) (*beep.Buffer, error) {
	if path == "" {
		return nil, fmt.Errorf("no track configured")
	}
	path = expandPath(path)

	p.cacheMutex.RLock()
	buffer, ok := p.cache[path]
	p.cacheMutex.RUnlock()
	if ok {
		return buffer, nil
	}

	buffer, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if err := p.ensureInitialized(buffer.Format().SampleRate); err != nil {
		return nil, err
	}

	p.cacheMutex.Lock()
	p.cache[path] = buffer
	p.cacheMutex.Unlock()

	return buffer, nil
}

// decodeFile loads and decodes a sound file into a buffer.
func decodeFile(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track: %w", err)
	}
	defer func() { _ = f.Close() }()

	ext := strings.ToLower(filepath.Ext(path))

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode track: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)

	return buffer, nil
}

// ensureInitialized initializes the speaker if not already done.
func (p *Player) ensureInitialized(sampleRate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	bufferSize := sampleRate.N(time.Millisecond * 100)

	if err := speaker.Init(sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	p.sampleRate = sampleRate
	p.initialized = true
	p.logger.Debug("speaker initialized", "sample_rate", sampleRate)
	return nil
}

// ClearCache clears the track cache.
func (p *Player) ClearCache() {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	p.cache = make(map[string]*beep.Buffer)
}

// InvalidateCache removes a specific path from the cache.
func (p *Player) InvalidateCache(path string) {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	delete(p.cache, expandPath(path))
}

// Close stops playback and releases the speaker.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.initialized {
		speaker.Clear()
		speaker.Close()
		p.initialized = false
	}

	p.ClearCache()
	p.logger.Debug("audio player closed")
}

// setVolume maps a linear volume onto a base-2 volume effect.
func setVolume(vol *effects.Volume, volume float64) {
	vol.Silent = volume <= 0
	vol.Volume = volumeToExponent(volume)
}

// volumeToExponent converts a linear volume (0-1) to a base-2 gain exponent.
func volumeToExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	if volume > 1 {
		volume = 1
	}
	return math.Log2(volume)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
