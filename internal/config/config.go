// Package config reads and writes the ~/.huddle/config.toml shared by
// the daemon and the CLI.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration.
type Config struct {
	// ListenAddr is the daemon's HTTP listen address.
	ListenAddr string `toml:"listen_addr"`

	// TokenSecret verifies bearer tokens from the identity provider.
	TokenSecret string `toml:"token_secret"`

	// ServerURL is where the CLI reaches the daemon.
	ServerURL string `toml:"server_url"`

	// Token is the CLI's own bearer token.
	Token string `toml:"token"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8790",
		ServerURL:  "http://127.0.0.1:8790",
	}
}

// Load reads config from the given path. A missing file yields the
// defaults rather than an error; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = Default().ListenAddr
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = Default().ServerURL
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
