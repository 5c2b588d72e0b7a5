// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/folio/internal/fade"
)

// Default configuration values.
const (
	DefaultEndpoint       = "https://formspree.io/f/mrgwnkgq"
	DefaultListen         = "127.0.0.1:8787"
	DefaultTrack          = "~/.local/share/folio/sounds/magical_space.mp3"
	DefaultTimeout        = 10 * time.Second
	DefaultNoticeDuration = 5 * time.Second
	DefaultOlderThan      = 30 * 24 * time.Hour
	DefaultKeep           = 500
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "200ms", "1s", "30d", "2w" or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '200ms', '1s', '7d' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// ParseDuration parses a Go duration with additional day (7d) and week (1w)
// suffixes. "0" and "" parse as zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the folio configuration.
// Loaded from ~/.config/folio/config.toml
type Config struct {
	Ambience  AmbienceConfig  `toml:"ambience"`
	Audio     AudioConfig     `toml:"audio"`
	Contact   ContactConfig   `toml:"contact"`
	Server    ServerConfig    `toml:"server"`
	Outbox    OutboxConfig    `toml:"outbox"`
	Notify    NotifyConfig    `toml:"notify"`
	Clipboard ClipboardConfig `toml:"clipboard"`
}

// AmbienceConfig holds the fade parameters of the ambient track.
type AmbienceConfig struct {
	Ceiling          float64  `toml:"ceiling"`            // 0.0-1.0, loudest fade-in volume
	FadeInStep       float64  `toml:"fade_in_step"`       // Volume added per fade-in tick
	FadeInPeriod     Duration `toml:"fade_in_period"`     // e.g. "1s"
	FadeOutStep      float64  `toml:"fade_out_step"`      // Volume removed per fade-out tick
	FadeOutPeriod    Duration `toml:"fade_out_period"`    // e.g. "200ms"
	FadeOutThreshold float64  `toml:"fade_out_threshold"` // Fade-out stops at or below this
}

// AudioConfig contains playback settings.
type AudioConfig struct {
	Enabled bool   `toml:"enabled"`
	Track   string `toml:"track"` // WAV, OGG or MP3, looped
}

// ContactConfig contains form submission settings.
type ContactConfig struct {
	Endpoint       string   `toml:"endpoint"`        // Form backend URL
	Timeout        Duration `toml:"timeout"`         // HTTP timeout per submission
	NoticeDuration Duration `toml:"notice_duration"` // How long the thank-you notice stays
}

// ServerConfig contains HTTP API settings for foliod.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// OutboxConfig contains submission history settings.
type OutboxConfig struct {
	Enabled   bool     `toml:"enabled"`
	OlderThan Duration `toml:"older_than"` // Default prune age
	Keep      int      `toml:"keep"`       // Max entries kept by prune (0 = unlimited)
}

// NotifyConfig controls desktop notifications for relayed submissions.
type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

// ClipboardConfig contains clipboard settings for the TUI history view.
type ClipboardConfig struct {
	Command string `toml:"command"` // e.g. "wl-copy"; empty = auto-detect
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Ambience: AmbienceConfig{
			Ceiling:          fade.DefaultCeiling,
			FadeInStep:       fade.DefaultFadeInStep,
			FadeInPeriod:     Duration(fade.DefaultFadeInPeriod),
			FadeOutStep:      fade.DefaultFadeOutStep,
			FadeOutPeriod:    Duration(fade.DefaultFadeOutPeriod),
			FadeOutThreshold: fade.DefaultFadeOutThreshold,
		},
		Audio: AudioConfig{
			Enabled: true,
			Track:   DefaultTrack,
		},
		Contact: ContactConfig{
			Endpoint:       DefaultEndpoint,
			Timeout:        Duration(DefaultTimeout),
			NoticeDuration: Duration(DefaultNoticeDuration),
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
		Outbox: OutboxConfig{
			Enabled:   true,
			OlderThan: Duration(DefaultOlderThan),
			Keep:      DefaultKeep,
		},
		Notify: NotifyConfig{
			Enabled: false,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "folio", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "folio")
}

// OutboxPath returns the path to the submission history JSONL file.
func OutboxPath() string {
	return filepath.Join(DataPath(), "outbox.jsonl")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed and writes atomically via a temp file.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Profile().Validate(); err != nil {
		return fmt.Errorf("ambience: %w", err)
	}

	endpoint := c.Contact.Endpoint
	if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
		return fmt.Errorf("contact endpoint must be an http(s) URL, got %q", endpoint)
	}
	if c.Contact.Timeout.Duration() <= 0 {
		return fmt.Errorf("contact timeout must be greater than 0, got %s", c.Contact.Timeout.Duration())
	}

	if c.Server.Listen == "" {
		return errors.New("server listen address cannot be empty")
	}

	if c.Outbox.Keep < 0 {
		return fmt.Errorf("outbox keep must not be negative, got %d", c.Outbox.Keep)
	}

	return nil
}

// Profile returns the fade profile described by the ambience section.
func (c *Config) Profile() fade.Profile {
	return fade.Profile{
		Ceiling:          c.Ambience.Ceiling,
		FadeInStep:       c.Ambience.FadeInStep,
		FadeInPeriod:     c.Ambience.FadeInPeriod.Duration(),
		FadeOutStep:      c.Ambience.FadeOutStep,
		FadeOutPeriod:    c.Ambience.FadeOutPeriod.Duration(),
		FadeOutThreshold: c.Ambience.FadeOutThreshold,
	}
}

// TrackPath returns the audio track path with ~ expanded.
func (c *Config) TrackPath() string {
	return expandPath(c.Audio.Track)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
