// Package config loads featlog settings from a YAML file.
//
// Files are decoded strictly (unknown keys are rejected), defaults are
// applied to absent keys, and the result is checked against a CUE schema
// before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultClientDB is the client store path used when none is configured.
const DefaultClientDB = "featlog.db"

// Config holds the settings shared by every featlog command.
type Config struct {
	// ClientDB is the path of the local capture store.
	ClientDB string `yaml:"client_db" json:"client_db"`

	// ServerDB is the path of the consolidated store. Only replicate and
	// server-side schema commands need it.
	ServerDB string `yaml:"server_db" json:"server_db,omitempty"`

	// User attributes replicated facts. Defaults to $USER.
	User string `yaml:"user" json:"user,omitempty"`

	// Version stamps replicated feature entries. Optional.
	Version string `yaml:"version" json:"version,omitempty"`

	Log Log `yaml:"log" json:"log"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" json:"level"`   // debug | info | warn | error
	Format string `yaml:"format" json:"format"` // text | json
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ClientDB: DefaultClientDB,
		User:     os.Getenv("USER"),
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data over the defaults and validates it.
// An empty document yields the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SlogLevel returns the slog level named by l.Level.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w in the configured format.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
