package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/folio/internal/fade"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.25, cfg.Ambience.Ceiling)
	assert.Equal(t, 0.02, cfg.Ambience.FadeInStep)
	assert.Equal(t, time.Second, cfg.Ambience.FadeInPeriod.Duration())
	assert.Equal(t, 0.1, cfg.Ambience.FadeOutStep)
	assert.Equal(t, 200*time.Millisecond, cfg.Ambience.FadeOutPeriod.Duration())
	assert.Equal(t, 0.1, cfg.Ambience.FadeOutThreshold)
	assert.True(t, cfg.Audio.Enabled)
	assert.Equal(t, "https://formspree.io/f/mrgwnkgq", cfg.Contact.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Contact.NoticeDuration.Duration())
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Listen)
	assert.True(t, cfg.Outbox.Enabled)
	assert.False(t, cfg.Notify.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Profile(t *testing.T) {
	assert.Equal(t, fade.DefaultProfile(), DefaultConfig().Profile())
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Contact.Endpoint, cfg.Contact.Endpoint)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[ambience]
ceiling = 0.5
fade_in_step = 0.05
fade_in_period = "500ms"
fade_out_period = "100"

[audio]
enabled = false
track = "/tmp/space.ogg"

[contact]
endpoint = "https://example.com/f/abc"
timeout = "3s"

[server]
listen = ":9000"

[outbox]
keep = 10
older_than = "24h"

[notify]
enabled = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Ambience.Ceiling)
	assert.Equal(t, 0.05, cfg.Ambience.FadeInStep)
	assert.Equal(t, 500*time.Millisecond, cfg.Ambience.FadeInPeriod.Duration())
	assert.Equal(t, 100*time.Millisecond, cfg.Ambience.FadeOutPeriod.Duration())
	assert.Equal(t, 0.1, cfg.Ambience.FadeOutStep)
	assert.False(t, cfg.Audio.Enabled)
	assert.Equal(t, "/tmp/space.ogg", cfg.TrackPath())
	assert.Equal(t, "https://example.com/f/abc", cfg.Contact.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Contact.Timeout.Duration())
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, 10, cfg.Outbox.Keep)
	assert.Equal(t, 24*time.Hour, cfg.Outbox.OlderThan.Duration())
	assert.True(t, cfg.Notify.Enabled)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`this is not valid toml [`), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[contact]\ntimeout = \"soon\"\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"ceiling too high", func(c *Config) { c.Ambience.Ceiling = 2 }, true},
		{"zero fade step", func(c *Config) { c.Ambience.FadeInStep = 0 }, true},
		{"zero fade period", func(c *Config) { c.Ambience.FadeOutPeriod = 0 }, true},
		{"non-http endpoint", func(c *Config) { c.Contact.Endpoint = "ftp://x" }, true},
		{"zero timeout", func(c *Config) { c.Contact.Timeout = 0 }, true},
		{"empty listen", func(c *Config) { c.Server.Listen = "" }, true},
		{"negative keep", func(c *Config) { c.Outbox.Keep = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConfig_Save(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.toml")

	cfg := DefaultConfig()
	cfg.Ambience.FadeOutPeriod = Duration(300 * time.Millisecond)
	cfg.Server.Listen = ":1234"

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, loaded.Ambience.FadeOutPeriod.Duration())
	assert.Equal(t, ":1234", loaded.Server.Listen)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/folio/config.toml", ConfigPath())
}

func TestDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, "/custom/data/folio", DataPath())
	assert.Equal(t, "/custom/data/folio/outbox.jsonl", OutboxPath())
}

func TestEnsureDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	require.NoError(t, EnsureDataDir())

	info, err := os.Stat(filepath.Join(dir, "folio"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestTrackPath_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Audio.Track = "~/music/space.mp3"
	assert.Equal(t, filepath.Join(home, "music", "space.mp3"), cfg.TrackPath())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvEndpoint, "https://example.com/f/env")
	t.Setenv(EnvListen, ":7000")
	t.Setenv(EnvTrack, "")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "https://example.com/f/env", cfg.Contact.Endpoint)
	assert.Equal(t, ":7000", cfg.Server.Listen)
	assert.Equal(t, DefaultTrack, cfg.Audio.Track)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FOLIO_LISTEN=:6060\n"), 0644))

	// Registers cleanup for the variable godotenv is about to set.
	t.Setenv(EnvListen, "")
	require.NoError(t, os.Unsetenv(EnvListen))

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, ":6060", os.Getenv(EnvListen))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		hasError bool
	}{
		{"0", 0, false},
		{"", 0, false},
		{"200ms", 200 * time.Millisecond, false},
		{"48h", 48 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"soon", 0, true},
		{"xd", 0, true},
		{"xw", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDuration(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestLoadConfig_DayDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[outbox]\nolder_than = \"7d\"\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.Outbox.OlderThan.Duration())
}
