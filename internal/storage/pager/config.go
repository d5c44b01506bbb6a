package pager

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ───────────────────────────────────────────────────────────────────────────
// Configuration
// ───────────────────────────────────────────────────────────────────────────

const (
	// DefaultCacheSize is the buffer pool capacity in pages.
	DefaultCacheSize = 1024

	// DefaultDirtyLimit caps the dirty set; it must stay below the cache
	// size so the pool always holds an evictable clean page.
	DefaultDirtyLimit = 1000
)

// Config describes one database instance. The zero value plus a Path is a
// working configuration.
type Config struct {
	// Path is the database file. Required.
	Path string `yaml:"path"`

	// JournalPath overrides the rollback journal location. Defaults to
	// Path + "-journal".
	JournalPath string `yaml:"journal_path,omitempty"`

	// CacheSize is the buffer pool capacity in pages (default 1024).
	CacheSize int `yaml:"cache_size,omitempty"`

	// DirtyLimit caps the dirty set (default 1000). Reaching it
	// mid-statement flushes pages to disk while keeping the journal.
	DirtyLimit int `yaml:"dirty_limit,omitempty"`

	// JournalRing bounds the in-memory ring of unsaved pre-images
	// (default 64).
	JournalRing int `yaml:"journal_ring,omitempty"`

	// CheckpointSchedule, when set, is a cron expression (with seconds)
	// driving the background checkpointer.
	CheckpointSchedule string `yaml:"checkpoint_schedule,omitempty"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.DirtyLimit == 0 {
		c.DirtyLimit = DefaultDirtyLimit
	}
	if c.JournalRing == 0 {
		c.JournalRing = DefaultJournalRing
	}
}

func (c *Config) journalPath() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	return c.Path + "-journal"
}

// Validate enforces the container invariants: the dirty limit stays below
// the cache size and the journal ring within the dirty limit.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("config: path is required")
	}
	if c.CacheSize < 2 {
		return fmt.Errorf("config: cache size %d too small", c.CacheSize)
	}
	if c.DirtyLimit < 1 || c.DirtyLimit >= c.CacheSize {
		return fmt.Errorf("config: dirty limit %d must be in [1, cache size %d)", c.DirtyLimit, c.CacheSize)
	}
	if c.JournalRing < 1 || c.JournalRing > c.DirtyLimit {
		return fmt.Errorf("config: journal ring %d must be in [1, dirty limit %d]", c.JournalRing, c.DirtyLimit)
	}
	return nil
}
