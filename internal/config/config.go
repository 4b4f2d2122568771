// Package config handles loading and resolving greenwatch configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags (--endpoint, --db, ...)
//  2. Environment variables GREENWATCH_ENDPOINT, GREENWATCH_DB_PATH
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ugagro/greenwatch/internal/poller"
	"github.com/ugagro/greenwatch/internal/series"
	"github.com/ugagro/greenwatch/internal/source"
	"github.com/ugagro/greenwatch/internal/threshold"
)

const (
	DefaultConfigFile = "config.json"
	DefaultFormat     = "table"
	DefaultTimeout    = 10 * time.Second
	DefaultRate       = 1.0
	EnvEndpoint       = "GREENWATCH_ENDPOINT"
	EnvDBPath         = "GREENWATCH_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	Endpoint        string  `json:"endpoint"`
	DefaultFormat   string  `json:"default_format"`
	Timeout         string  `json:"timeout"`
	Rate            float64 `json:"rate"`
	RefreshInterval string  `json:"refresh_interval"`
	Cap             int     `json:"cap"`
	DBPath          string  `json:"db_path"`
	Policy          string  `json:"policy"`
	Timezone        string  `json:"timezone"`
	MQTTBroker      string  `json:"mqtt_broker"`
	MQTTTopic       string  `json:"mqtt_topic"`
	MQTTClientID    string  `json:"mqtt_client_id"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	Endpoint        string
	Format          string
	Timeout         time.Duration
	Rate            float64
	RefreshInterval time.Duration
	Cap             int
	DBPath          string
	Policy          threshold.Policy
	Location        *time.Location
	MQTTBroker      string
	MQTTTopic       string
	MQTTClientID    string
	ConfigPath      string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagEndpoint is the value of --endpoint (empty string if not set).
func Load(flagEndpoint string) (*Config, error) {
	cfg := &Config{
		Endpoint:        source.DefaultEndpoint,
		Format:          DefaultFormat,
		Timeout:         DefaultTimeout,
		Rate:            DefaultRate,
		RefreshInterval: poller.DefaultInterval,
		Cap:             series.DefaultCap,
		Policy:          threshold.PolicyRange,
		Location:        time.Local,
		MQTTTopic:       source.DefaultTopic,
	}

	// Layer 1: config.json (lowest priority)
	f, path, err := loadFile()
	if err == nil {
		if err := applyFile(cfg, f, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flag (highest priority)
	if flagEndpoint != "" {
		cfg.Endpoint = flagEndpoint
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".greenwatch", "greenwatch.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if the resolved values are unusable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf(
			"invalid endpoint %q.\n\n"+
				"Set it one of these ways:\n"+
				"  1. CLI flag:        greenwatch --endpoint http://host:5678/webhook/greenhouse-data ...\n"+
				"  2. Environment:     export %s=http://host:5678/webhook/greenhouse-data\n"+
				"  3. config.json:     {\"endpoint\": \"http://host:5678/webhook/greenhouse-data\"}",
			c.Endpoint, EnvEndpoint,
		)
	}
	if c.Cap <= 0 {
		return fmt.Errorf("cap must be positive, got %d", c.Cap)
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("refresh_interval must be at least 1s, got %s", c.RefreshInterval)
	}
	return nil
}

// loadFile attempts to read config.json from the current working directory.
// A missing file yields an error wrapping os.ErrNotExist.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s: %w", path, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) error {
	cfg.ConfigPath = path
	if f.Endpoint != "" {
		cfg.Endpoint = f.Endpoint
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.RefreshInterval != "" {
		if d, err := time.ParseDuration(f.RefreshInterval); err == nil {
			cfg.RefreshInterval = d
		}
	}
	if f.Cap > 0 {
		cfg.Cap = f.Cap
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.Policy != "" {
		p, err := threshold.ParsePolicy(f.Policy)
		if err != nil {
			return fmt.Errorf("config.json: %w", err)
		}
		cfg.Policy = p
	}
	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return fmt.Errorf("config.json: timezone %q: %w", f.Timezone, err)
		}
		cfg.Location = loc
	}
	if f.MQTTBroker != "" {
		cfg.MQTTBroker = f.MQTTBroker
	}
	if f.MQTTTopic != "" {
		cfg.MQTTTopic = f.MQTTTopic
	}
	if f.MQTTClientID != "" {
		cfg.MQTTClientID = f.MQTTClientID
	}
	return nil
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `greenwatch config init`.
func Template() File {
	return File{
		Endpoint:        source.DefaultEndpoint,
		DefaultFormat:   DefaultFormat,
		Timeout:         DefaultTimeout.String(),
		Rate:            DefaultRate,
		RefreshInterval: poller.DefaultInterval.String(),
		Cap:             series.DefaultCap,
		Policy:          threshold.PolicyRange.String(),
		MQTTTopic:       source.DefaultTopic,
	}
}

// ReadFile reads a config file from path. A missing file returns the
// template.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Template(), nil
		}
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
