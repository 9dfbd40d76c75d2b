// Package config provides configuration loading for faultline.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FAULTLINE_ENGINE_MAX_PATTERNS, ...)
//  2. YAML config file (~/.config/faultline/config.yaml by default)
//  3. Hardcoded defaults
package config

import (
	"fmt"

	"github.com/fyrsmithlabs/faultline/internal/learning"
	"github.com/fyrsmithlabs/faultline/internal/logging"
	"github.com/fyrsmithlabs/faultline/internal/match"
	"github.com/fyrsmithlabs/faultline/internal/telemetry"
)

// Config holds the complete faultline configuration.
type Config struct {
	Patterns  PatternsConfig   `koanf:"patterns"`
	Engine    EngineConfig     `koanf:"engine"`
	Learning  learning.Config  `koanf:"learning"`
	Monitor   MonitorConfig    `koanf:"monitor"`
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

// PatternsConfig controls the pattern catalog on disk.
type PatternsConfig struct {
	// Dir is the directory holding builtin/, user.json, and
	// learned.json partitions.
	Dir string `koanf:"dir"`

	// Watch reloads the catalog when partition files change.
	Watch bool `koanf:"watch"`
}

// EngineConfig tunes analysis and matching.
type EngineConfig struct {
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	MaxPatterns         int     `koanf:"max_patterns"`
	SizeThreshold       int     `koanf:"size_threshold"`
	ChunkBytes          int     `koanf:"chunk_bytes"`
	OverlapLines        int     `koanf:"overlap_lines"`
	Workers             int     `koanf:"workers"`
	ContextRadius       int     `koanf:"context_radius"`
	CacheSize           int     `koanf:"cache_size"`
}

// MatchConfig maps the engine section onto the match engine's config.
func (e EngineConfig) MatchConfig() *match.Config {
	cfg := match.DefaultConfig()
	if e.SizeThreshold > 0 {
		cfg.SizeThreshold = e.SizeThreshold
	}
	if e.ChunkBytes > 0 {
		cfg.ChunkBytes = e.ChunkBytes
	}
	if e.OverlapLines > 0 {
		cfg.OverlapLines = e.OverlapLines
	}
	if e.Workers > 0 {
		cfg.Workers = e.Workers
	}
	if e.ContextRadius > 0 {
		cfg.ContextRadius = e.ContextRadius
	}
	if e.CacheSize > 0 {
		cfg.CacheSize = e.CacheSize
	}
	return cfg
}

// MonitorConfig controls the resource monitor.
type MonitorConfig struct {
	MemoryThresholdBytes int64 `koanf:"memory_threshold_bytes"`
}

// NewDefaultConfig returns production-ready defaults.
func NewDefaultConfig() *Config {
	mc := match.DefaultConfig()
	return &Config{
		Patterns: PatternsConfig{
			Dir:   "", // resolved to ~/.local/share/faultline/patterns at load
			Watch: false,
		},
		Engine: EngineConfig{
			ConfidenceThreshold: 0.5,
			MaxPatterns:         5,
			SizeThreshold:       mc.SizeThreshold,
			ChunkBytes:          mc.ChunkBytes,
			OverlapLines:        mc.OverlapLines,
			Workers:             mc.Workers,
			ContextRadius:       mc.ContextRadius,
			CacheSize:           mc.CacheSize,
		},
		Learning:  learning.DefaultConfig(),
		Monitor:   MonitorConfig{MemoryThresholdBytes: 300 << 20},
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 1 {
		return fmt.Errorf("engine.confidence_threshold must be in [0, 1], got %f",
			c.Engine.ConfidenceThreshold)
	}
	if c.Engine.MaxPatterns < 0 {
		return fmt.Errorf("engine.max_patterns must be >= 0, got %d", c.Engine.MaxPatterns)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0, got %d", c.Engine.Workers)
	}
	if c.Monitor.MemoryThresholdBytes < 0 {
		return fmt.Errorf("monitor.memory_threshold_bytes must be >= 0, got %d",
			c.Monitor.MemoryThresholdBytes)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
