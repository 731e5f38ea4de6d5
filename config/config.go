// Package config loads and validates the JSON/YAML configuration file
// that supplies the recognised keys of §6: cache sizing, worker and
// timeout knobs, and the log store's on-disk location. Loading and
// file-type dispatch follow the teacher's config.go/tools.go
// (LoadConfig, isJSONFile/isYAMLFile, gopkg.in/yaml.v3).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpcpool/patricia-cache/internal/chain"
)

// URI is a config-file path, local-only: the log store this engine
// manages is always on local disk, unlike the teacher's remote/CID/
// IPFS/Filecoin data sources, which have no equivalent here.
type URI string

func (u URI) String() string { return string(u) }

// IsZero reports whether the URI was left unset.
func (u URI) IsZero() bool { return u == "" }

// IsLocal reports whether u names a local filesystem path.
func (u URI) IsLocal() bool {
	return u.IsZero() == false && (strings.HasPrefix(string(u), "file://") || strings.HasPrefix(string(u), "/") || strings.HasPrefix(string(u), "./") || strings.HasPrefix(string(u), "../"))
}

// Path strips a file:// prefix, if present.
func (u URI) Path() string {
	return strings.TrimPrefix(string(u), "file://")
}

const (
	defaultEntityIterableCacheSize           = 10000
	defaultEntityIterableCacheCountsCacheSize = 10000
	defaultEntityIterableCacheThreadCount    = 4
	defaultDeferredDelay                     = 5 * time.Second
	defaultCachingTimeout                    = 30 * time.Second
	defaultCountsCachingTimeout               = 10 * time.Second
	defaultStartCachingTimeout                = 15 * time.Second
	defaultMonitorTxnsCheckFreq               = 1 * time.Second
)

// LogStoreConfig locates the append-only node/value log on disk.
type LogStoreConfig struct {
	URI URI `json:"uri" yaml:"uri"`
}

// Config holds exactly the recognised keys of §6 plus the log store's
// file path. Every *uint64/*int field is optional; ApplyDefaults (run
// automatically by LoadConfig) fills in the teacher-style sane
// defaults for whatever was left nil.
type Config struct {
	originalFilepath string

	LogStore LogStoreConfig `json:"log_store" yaml:"log_store"`

	EntityIterableCacheSize            *int    `json:"entityIterableCacheSize" yaml:"entityIterableCacheSize"`
	EntityIterableCacheCountsCacheSize *int    `json:"entityIterableCacheCountsCacheSize" yaml:"entityIterableCacheCountsCacheSize"`
	EntityIterableCacheThreadCount     *int    `json:"entityIterableCacheThreadCount" yaml:"entityIterableCacheThreadCount"`
	EntityIterableCacheDeferredDelayMs *uint64 `json:"entityIterableCacheDeferredDelay" yaml:"entityIterableCacheDeferredDelay"`

	EntityIterableCacheCachingTimeoutMs       *uint64 `json:"entityIterableCacheCachingTimeout" yaml:"entityIterableCacheCachingTimeout"`
	EntityIterableCacheCountsCachingTimeoutMs *uint64 `json:"entityIterableCacheCountsCachingTimeout" yaml:"entityIterableCacheCountsCachingTimeout"`
	EntityIterableCacheStartCachingTimeoutMs  *uint64 `json:"entityIterableCacheStartCachingTimeout" yaml:"entityIterableCacheStartCachingTimeout"`

	EnvMonitorTxnsCheckFreqMs *uint64 `json:"envMonitorTxnsCheckFreq" yaml:"envMonitorTxnsCheckFreq"`

	IsCachingDisabled                    bool `json:"isCachingDisabled" yaml:"isCachingDisabled"`
	EntityIterableCacheUseHumanReadable bool `json:"entityIterableCacheUseHumanReadable" yaml:"entityIterableCacheUseHumanReadable"`
}

// LoadConfig reads path (JSON or YAML, by extension), applies
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	switch {
	case isJSONFile(path):
		if err := loadFromJSON(path, &cfg); err != nil {
			return nil, err
		}
	case isYAMLFile(path):
		if err := loadFromYAML(path, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("config file %q must be JSON or YAML", path)
	}
	cfg.originalFilepath = path
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return &cfg, nil
}

func isJSONFile(path string) bool { return strings.HasSuffix(path, ".json") }

func isYAMLFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

func loadFromJSON(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(dst)
}

func loadFromYAML(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return yaml.NewDecoder(f).Decode(dst)
}

// ApplyDefaults fills every unset knob with the teacher-style default,
// mirroring config.go's pattern of small pure predicate/setter methods
// on the loaded struct rather than a separate defaulting pass.
func (c *Config) ApplyDefaults() {
	intDefault(&c.EntityIterableCacheSize, defaultEntityIterableCacheSize)
	intDefault(&c.EntityIterableCacheCountsCacheSize, defaultEntityIterableCacheCountsCacheSize)
	intDefault(&c.EntityIterableCacheThreadCount, defaultEntityIterableCacheThreadCount)
	msDefault(&c.EntityIterableCacheDeferredDelayMs, defaultDeferredDelay)
	msDefault(&c.EntityIterableCacheCachingTimeoutMs, defaultCachingTimeout)
	msDefault(&c.EntityIterableCacheCountsCachingTimeoutMs, defaultCountsCachingTimeout)
	msDefault(&c.EntityIterableCacheStartCachingTimeoutMs, defaultStartCachingTimeout)
	msDefault(&c.EnvMonitorTxnsCheckFreqMs, defaultMonitorTxnsCheckFreq)
}

func intDefault(p **int, def int) {
	if *p == nil {
		v := def
		*p = &v
	}
}

func msDefault(p **uint64, def time.Duration) {
	if *p == nil {
		v := uint64(def.Milliseconds())
		*p = &v
	}
}

// ConfigFilepath returns the path Config was loaded from.
func (c *Config) ConfigFilepath() string { return c.originalFilepath }

// CacheSize returns entityIterableCacheSize.
func (c *Config) CacheSize() int { return *c.EntityIterableCacheSize }

// CountsCacheSize returns entityIterableCacheCountsCacheSize.
func (c *Config) CountsCacheSize() int { return *c.EntityIterableCacheCountsCacheSize }

// ThreadCount returns entityIterableCacheThreadCount.
func (c *Config) ThreadCount() int { return *c.EntityIterableCacheThreadCount }

// DeferredDelay returns entityIterableCacheDeferredDelay as a Duration.
func (c *Config) DeferredDelay() time.Duration {
	return time.Duration(*c.EntityIterableCacheDeferredDelayMs) * time.Millisecond
}

// CachingTimeout returns entityIterableCacheCachingTimeout as a Duration.
func (c *Config) CachingTimeout() time.Duration {
	return time.Duration(*c.EntityIterableCacheCachingTimeoutMs) * time.Millisecond
}

// CountsCachingTimeout returns entityIterableCacheCountsCachingTimeout as a Duration.
func (c *Config) CountsCachingTimeout() time.Duration {
	return time.Duration(*c.EntityIterableCacheCountsCachingTimeoutMs) * time.Millisecond
}

// StartCachingTimeout returns entityIterableCacheStartCachingTimeout as a Duration.
func (c *Config) StartCachingTimeout() time.Duration {
	return time.Duration(*c.EntityIterableCacheStartCachingTimeoutMs) * time.Millisecond
}

// MonitorTxnsCheckFreq returns envMonitorTxnsCheckFreq as a Duration.
func (c *Config) MonitorTxnsCheckFreq() time.Duration {
	return time.Duration(*c.EnvMonitorTxnsCheckFreqMs) * time.Millisecond
}

// Validate checks the loaded config for internal consistency, short-
// circuiting at the first failing step via internal/chain, the way
// the teacher's Config.Validate reads as a sequence of guarded blocks.
func (c *Config) Validate() error {
	return chain.New().
		Then("log store uri set", func() error {
			if c.LogStore.URI.IsZero() {
				return fmt.Errorf("log_store.uri must be set")
			}
			return nil
		}).
		Then("log store uri local", func() error {
			if !c.LogStore.URI.IsLocal() {
				return fmt.Errorf("log_store.uri must be a local file path")
			}
			return nil
		}).
		Then("cache size positive", func() error {
			if c.CacheSize() <= 0 {
				return fmt.Errorf("entityIterableCacheSize must be positive")
			}
			return nil
		}).
		Then("counts cache size positive", func() error {
			if c.CountsCacheSize() <= 0 {
				return fmt.Errorf("entityIterableCacheCountsCacheSize must be positive")
			}
			return nil
		}).
		Then("thread count positive", func() error {
			if c.ThreadCount() <= 0 {
				return fmt.Errorf("entityIterableCacheThreadCount must be positive")
			}
			return nil
		}).
		Then("start caching timeout not longer than caching timeout", func() error {
			// A job can never finish within a queue wait longer than its
			// own execution budget; config.go validates cross-field
			// relationships the same way (e.g. from_pieces.deals xor
			// piece_to_uri).
			if c.StartCachingTimeout() > c.CachingTimeout() {
				return fmt.Errorf("entityIterableCacheStartCachingTimeout must not exceed entityIterableCacheCachingTimeout")
			}
			return nil
		}).
		Err()
}
