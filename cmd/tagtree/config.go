package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration of the CLI. Flags given on the
// command line take precedence.
type Config struct {
	Remote     RemoteConfig `yaml:"remote"`
	SchemaDirs []SchemaDir  `yaml:"schema_dirs"`
	Strict     bool         `yaml:"strict"`
	LogLevel   string       `yaml:"log_level"`
	Language   string       `yaml:"language"`
}

// RemoteConfig enables fetching schemas over HTTP(S) for the listed URI
// prefixes.
type RemoteConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Prefixes []string      `yaml:"prefixes"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SchemaDir serves schema URIs under Prefix from files under Dir.
type SchemaDir struct {
	Prefix string `yaml:"prefix"`
	Dir    string `yaml:"dir"`
}

func defaultConfig() Config {
	return Config{LogLevel: "warn", Language: "en", Remote: RemoteConfig{Timeout: 10 * time.Second}}
}

// loadConfig reads path over the defaults. Relative schema directories are
// resolved against the directory of the file.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, d := range cfg.SchemaDirs {
		if d.Prefix == "" || d.Dir == "" {
			return cfg, fmt.Errorf("config %s: schema_dirs[%d] needs prefix and dir", path, i)
		}
		if !filepath.IsAbs(d.Dir) {
			cfg.SchemaDirs[i].Dir = filepath.Join(base, d.Dir)
		}
	}
	if cfg.Remote.Enabled && len(cfg.Remote.Prefixes) == 0 {
		return cfg, fmt.Errorf("config %s: remote.enabled needs at least one prefix", path)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}
