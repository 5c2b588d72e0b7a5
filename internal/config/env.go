package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvEndpoint = "FOLIO_ENDPOINT"
	EnvListen   = "FOLIO_LISTEN"
	EnvTrack    = "FOLIO_TRACK"
)

// LoadEnvFiles loads KEY=value files into the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overlays FOLIO_* environment variables onto the configuration.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Contact.Endpoint = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv(EnvTrack); v != "" {
		c.Audio.Track = v
	}
}
