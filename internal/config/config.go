package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultExpiry   = 10 * time.Minute
	DefaultInterval = 30 * time.Second
)

// FileConfig mirrors the TOML config file. Scalar keys are pointers so the
// resolver can tell "unset" from "zero".
type FileConfig struct {
	ItemExpirySeconds     *int64   `toml:"item_expiry_seconds"`
	UpdateIntervalSeconds *int64   `toml:"update_interval_seconds"`
	AlwaysRemovePatterns  []string `toml:"always_remove_patterns"`
	NeverRemovePatterns   []string `toml:"never_remove_patterns"`
}

// Overrides carries values supplied on the command line. They win key-by-key
// over the file; pattern lists are additive.
type Overrides struct {
	ExpirySeconds   *int64
	IntervalSeconds *int64
	AlwaysRemove    []string
	NeverRemove     []string
}

// Config is the resolved configuration the daemon runs with, built once at
// startup.
type Config struct {
	Expiry       time.Duration
	Interval     time.Duration
	AlwaysRemove []string
	NeverRemove  []string
}

// DefaultPath returns the config file location used when --config is not
// given.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}

	return filepath.Join(home, ".config", "klipper-timeout.toml"), nil
}

// Load reads the TOML file at path. A missing file is not an error: the
// daemon then runs on defaults and overrides alone.
func Load(path string) (*FileConfig, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &FileConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %v: %w", path, err)
	}

	var parsed FileConfig
	if err := toml.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("parsing config file %v: %w", path, err)
	}

	return &parsed, nil
}

// Resolve merges file values and overrides and validates the result.
// Override patterns come first so explicitly supplied ones are consulted
// before file-sourced ones.
func Resolve(file *FileConfig, over Overrides) (*Config, error) {
	if file == nil {
		file = &FileConfig{}
	}

	expiry := pick(int64(DefaultExpiry/time.Second), file.ItemExpirySeconds, over.ExpirySeconds)
	if expiry <= 0 {
		return nil, fmt.Errorf("item_expiry_seconds must be greater than zero, got %v", expiry)
	}

	interval := pick(int64(DefaultInterval/time.Second), file.UpdateIntervalSeconds, over.IntervalSeconds)
	if interval <= 0 {
		return nil, fmt.Errorf("update_interval_seconds must be greater than zero, got %v", interval)
	}

	return &Config{
		Expiry:       time.Duration(expiry) * time.Second,
		Interval:     time.Duration(interval) * time.Second,
		AlwaysRemove: concat(over.AlwaysRemove, file.AlwaysRemovePatterns),
		NeverRemove:  concat(over.NeverRemove, file.NeverRemovePatterns),
	}, nil
}

func pick(fallback int64, file, override *int64) int64 {
	switch {
	case override != nil:
		return *override
	case file != nil:
		return *file
	default:
		return fallback
	}
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
