// Package config loads server configuration from config.yaml and
// DEST_-prefixed environment variables, with env vars taking
// precedence.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Storage      StorageConfig      `koanf:"storage"`
	Cache        CacheConfig        `koanf:"cache"`
	Destinations DestinationsConfig `koanf:"destinations"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RequestTimeoutSeconds bounds one event delivery request end to end.
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`
}

type StorageConfig struct {
	// Type selects the delivery record sink: sqlite or none.
	Type   string       `koanf:"type"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type CacheConfig struct {
	// MaxEntries bounds the shared lookup cache.
	MaxEntries int `koanf:"max_entries"`
}

type DestinationsConfig struct {
	Webhook WebhookConfig `koanf:"webhook"`
}

// WebhookConfig configures the builtin generic webhook destination.
type WebhookConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Missing file is fine, env vars carry the config.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config.
	if err := k.Load(env.Provider("DEST_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DEST_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout_seconds") {
		k.Set("server.request_timeout_seconds", 30)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "none")
	}
	if !k.Exists("destinations.webhook.enabled") {
		k.Set("destinations.webhook.enabled", true)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Storage.SQLite.Path = substituteEnvVars(cfg.Storage.SQLite.Path)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
