package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mgomes/vibemeta/meta"
)

type cliConfig struct {
	Runtime runtimeSection `toml:"runtime"`
	Log     logSection     `toml:"log"`
	Watch   watchSection   `toml:"watch"`
	Lint    lintSection    `toml:"lint"`
}

type runtimeSection struct {
	HashBuckets          int  `toml:"hash_buckets"`
	DisableAncestorCache bool `toml:"disable_ancestor_cache"`
}

type logSection struct {
	Level string `toml:"level"`
}

type watchSection struct {
	Debounce    time.Duration `toml:"debounce"`
	MetricsAddr string        `toml:"metrics_addr"`
}

type lintSection struct {
	Disable []string `toml:"disable"`
}

const (
	defaultHashBuckets   = 8
	defaultWatchDebounce = 200 * time.Millisecond
)

// loadConfig reads a TOML config file. An empty path yields the defaults.
func loadConfig(path string) (*cliConfig, error) {
	cfg := &cliConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse config %s: unknown key %s", path, undecoded[0])
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cliConfig) applyDefaults() {
	if c.Runtime.HashBuckets == 0 {
		c.Runtime.HashBuckets = defaultHashBuckets
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = defaultWatchDebounce
	}
}

func (c *cliConfig) validate() error {
	if n := c.Runtime.HashBuckets; n < 1 || n&(n-1) != 0 {
		return fmt.Errorf("runtime.hash_buckets must be a power of two (got %d)", n)
	}
	if _, err := parseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative (got %s)", c.Watch.Debounce)
	}
	for _, rule := range c.Lint.Disable {
		if !knownLintRule(rule) {
			return fmt.Errorf("lint.disable: unknown rule %q", rule)
		}
	}
	return nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level: unknown level %q", level)
	}
}

func (c *cliConfig) logLevel() slog.Level {
	level, err := parseLogLevel(c.Log.Level)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// runtimeConfig maps the [runtime] section onto a meta.Config. The logger is
// the process default installed by the command.
func (c *cliConfig) runtimeConfig() meta.Config {
	return meta.Config{
		InitialHashBuckets:   c.Runtime.HashBuckets,
		DisableAncestorCache: c.Runtime.DisableAncestorCache,
		Logger:               slog.Default(),
	}
}

func (c *cliConfig) lintDisabled() map[string]bool {
	disabled := make(map[string]bool, len(c.Lint.Disable))
	for _, rule := range c.Lint.Disable {
		disabled[rule] = true
	}
	return disabled
}
