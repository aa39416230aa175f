// Package config handles engine configuration loading using viper and
// action program loading using yaml.v3.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/actionengine/internal/log"
)

// EngineConfig represents the top-level static configuration.
// Maps to the `engine:` root key in YAML.
type EngineConfig struct {
	Log      log.LoggerConfig `mapstructure:"log"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
	Pipeline PipelineConfig   `mapstructure:"pipeline"`
	Source   SourceConfig     `mapstructure:"source"`
	Sink     SinkConfig       `mapstructure:"sink"`
	Program  string           `mapstructure:"program"` // action program file, relative to this file
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Pipeline ───

// PipelineConfig configures the packet pipeline runtime.
type PipelineConfig struct {
	Name              string        `mapstructure:"name"`
	Workers           int           `mapstructure:"workers"`            // 0 = 1
	QueueSize         int           `mapstructure:"queue_size"`         // per worker
	Dispatch          string        `mapstructure:"dispatch"`           // flow-hash | round-robin | hashring
	MaxRecirculations int           `mapstructure:"max_recirculations"` // resubmit/recirculate passes per packet
	DigestTTL         time.Duration `mapstructure:"digest_ttl"`         // duplicate digest suppression window
}

// Dispatch strategies.
const (
	DispatchFlowHash   = "flow-hash"
	DispatchRoundRobin = "round-robin"
	DispatchHashRing   = "hashring"
)

// ─── Source / Sink ───

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Type         string `mapstructure:"type"` // file | afpacket
	Path         string `mapstructure:"path"` // pcap or pcapng file
	Device       string `mapstructure:"device"`
	SnapLen      int    `mapstructure:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	TimeoutMs    int    `mapstructure:"timeout_ms"`
	FanoutID     uint16 `mapstructure:"fanout_id"`
	Filter       string `mapstructure:"filter"` // classic BPF, tcpdump -dd output
	Port         uint64 `mapstructure:"port"`   // ingress port stamped on every frame
}

// SinkConfig selects where emitted packets go.
type SinkConfig struct {
	Type    string `mapstructure:"type"` // console | file
	Path    string `mapstructure:"path"` // pcap file for type file
	SnapLen int    `mapstructure:"snap_len"`
}

// Source and sink types.
const (
	SourceFile     = "file"
	SourceAFPacket = "afpacket"
	SinkConsole    = "console"
	SinkFile       = "file"
)

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `engine: ...`.
type configRoot struct {
	Engine EngineConfig `mapstructure:"engine"`
}

// Load loads configuration from file.
// The YAML file uses `engine:` as root key; env vars use the ENGINE_ prefix (e.g., ENGINE_LOG_LEVEL).
func Load(path string) (*EngineConfig, error) {
	v := viper.New()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// key "engine.log.level" → env "ENGINE_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Engine

	if cfg.Program != "" && !filepath.IsAbs(cfg.Program) {
		cfg.Program = filepath.Join(filepath.Dir(path), cfg.Program)
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "engine." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("engine.log.level", "info")
	v.SetDefault("engine.log.pattern", log.DefaultPattern)
	v.SetDefault("engine.log.time", log.DefaultTime)
	v.SetDefault("engine.log.console", true)

	// Metrics defaults
	v.SetDefault("engine.metrics.enabled", false)
	v.SetDefault("engine.metrics.listen", ":9091")
	v.SetDefault("engine.metrics.path", "/metrics")

	// Pipeline defaults
	v.SetDefault("engine.pipeline.name", "default")
	v.SetDefault("engine.pipeline.workers", 1)
	v.SetDefault("engine.pipeline.queue_size", 1024)
	v.SetDefault("engine.pipeline.dispatch", DispatchFlowHash)
	v.SetDefault("engine.pipeline.max_recirculations", 4)
	v.SetDefault("engine.pipeline.digest_ttl", "10s")

	// Source / sink defaults
	v.SetDefault("engine.source.type", SourceFile)
	v.SetDefault("engine.source.snap_len", 65535)
	v.SetDefault("engine.source.buffer_size_mb", 8)
	v.SetDefault("engine.source.timeout_ms", 100)
	v.SetDefault("engine.sink.type", SinkConsole)
	v.SetDefault("engine.sink.snap_len", 65535)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *EngineConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if err := cfg.Source.ValidateAndApplyDefaults(); err != nil {
		return err
	}
	if err := cfg.Sink.ValidateAndApplyDefaults(); err != nil {
		return err
	}
	return cfg.Pipeline.ValidateAndApplyDefaults()
}

// ValidateAndApplyDefaults validates the source settings. A file source
// may leave Path empty when the path is given on the command line.
func (sc *SourceConfig) ValidateAndApplyDefaults() error {
	switch sc.Type {
	case "":
		sc.Type = SourceFile
	case SourceFile:
	case SourceAFPacket:
		if sc.Device == "" {
			return fmt.Errorf("afpacket source requires a device")
		}
	default:
		return fmt.Errorf("invalid source type: %s (must be %s/%s)", sc.Type, SourceFile, SourceAFPacket)
	}
	if sc.SnapLen <= 0 {
		sc.SnapLen = 65535
	}
	if sc.BufferSizeMB <= 0 {
		sc.BufferSizeMB = 8
	}
	if sc.TimeoutMs <= 0 {
		sc.TimeoutMs = 100
	}
	return nil
}

// ValidateAndApplyDefaults validates the sink settings.
func (sc *SinkConfig) ValidateAndApplyDefaults() error {
	switch sc.Type {
	case "":
		sc.Type = SinkConsole
	case SinkConsole, SinkFile:
	default:
		return fmt.Errorf("invalid sink type: %s (must be %s/%s)", sc.Type, SinkConsole, SinkFile)
	}
	if sc.SnapLen <= 0 {
		sc.SnapLen = 65535
	}
	return nil
}

// ValidateAndApplyDefaults validates the pipeline runtime settings.
func (pc *PipelineConfig) ValidateAndApplyDefaults() error {
	if pc.Name == "" {
		pc.Name = "default"
	}
	if pc.Workers < 1 {
		pc.Workers = 1
	}
	if pc.QueueSize < 1 {
		pc.QueueSize = 1024
	}
	switch pc.Dispatch {
	case "":
		pc.Dispatch = DispatchFlowHash
	case DispatchFlowHash, DispatchRoundRobin, DispatchHashRing:
	default:
		return fmt.Errorf("invalid pipeline dispatch: %s (must be %s/%s/%s)",
			pc.Dispatch, DispatchFlowHash, DispatchRoundRobin, DispatchHashRing)
	}
	if pc.MaxRecirculations < 0 {
		return fmt.Errorf("pipeline max_recirculations must not be negative")
	}
	if pc.DigestTTL < 0 {
		return fmt.Errorf("pipeline digest_ttl must not be negative")
	}
	return nil
}
