// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface is the read-only contract components receive. Keeping them off
// the concrete struct makes wiring mocks into tests trivial.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Replication() ReplicationConfig
	Audio() AudioConfig
	Persistence() PersistenceConfig
	Metrics() MetricsConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	EngineCfg      EngineConfig      `mapstructure:"engine" yaml:"engine"`
	ReplicationCfg ReplicationConfig `mapstructure:"replication" yaml:"replication"`
	AudioCfg       AudioConfig       `mapstructure:"audio" yaml:"audio"`
	PersistenceCfg PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	MetricsCfg     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig           { return c.EngineCfg }
func (c *Config) Replication() ReplicationConfig { return c.ReplicationCfg }
func (c *Config) Audio() AudioConfig             { return c.AudioCfg }
func (c *Config) Persistence() PersistenceConfig { return c.PersistenceCfg }
func (c *Config) Metrics() MetricsConfig         { return c.MetricsCfg }

// LoggerConfig holds all the configuration for the diagnostic logger. This
// is the zap logger, not the clinical event log, which is simulation state.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EngineConfig tunes the simulation controller's timers and stochastic
// branches.
type EngineConfig struct {
	ClockPeriod      time.Duration `mapstructure:"clock_period" yaml:"clock_period"`
	PhysiologyPeriod time.Duration `mapstructure:"physiology_period" yaml:"physiology_period"`
	RevealDelay      time.Duration `mapstructure:"reveal_delay" yaml:"reveal_delay"`
	CycleLength      time.Duration `mapstructure:"cycle_length" yaml:"cycle_length"`
	// DefibNoChange is the probability an unstaged shock leaves the rhythm
	// unchanged. Kept configurable so the balance is visible, not buried.
	DefibNoChange float64 `mapstructure:"defib_no_change" yaml:"defib_no_change"`
	// VBGDriftRate is the fraction of the blood-gas derangement gap closed
	// per physiology tick.
	VBGDriftRate float64 `mapstructure:"vbg_drift_rate" yaml:"vbg_drift_rate"`
	// Seed fixes the random source; zero means seed from the wall clock.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// ReplicationConfig tunes the session channel.
type ReplicationConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
	// SpoolDir is where the file-backed channel keeps session payloads.
	SpoolDir string `mapstructure:"spool_dir" yaml:"spool_dir"`
	// PollInterval is how often a file-channel monitor checks for a new
	// payload.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// AudioConfig tunes the beep scheduler.
type AudioConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Muted   bool `mapstructure:"muted" yaml:"muted"`
	// MinCadenceHR floors the cadence computation so the beep interval
	// cannot run away as the heart rate climbs or collapse to zero.
	MinCadenceHR int `mapstructure:"min_cadence_hr" yaml:"min_cadence_hr"`
}

// PersistenceConfig locates the local session checkpoint database.
type PersistenceConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	Autosave bool   `mapstructure:"autosave" yaml:"autosave"`
}

// MetricsConfig controls the optional prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vitalsim")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.clock_period", "1s")
	v.SetDefault("engine.physiology_period", "3s")
	v.SetDefault("engine.reveal_delay", "2s")
	v.SetDefault("engine.cycle_length", "2m")
	v.SetDefault("engine.defib_no_change", 0.60)
	v.SetDefault("engine.vbg_drift_rate", 0.15)
	v.SetDefault("engine.seed", 0)

	// -- Replication --
	v.SetDefault("replication.buffer_size", 16)
	v.SetDefault("replication.spool_dir", "")
	v.SetDefault("replication.poll_interval", "250ms")

	// -- Audio --
	v.SetDefault("audio.enabled", false)
	v.SetDefault("audio.muted", false)
	v.SetDefault("audio.min_cadence_hr", 20)

	// -- Persistence --
	v.SetDefault("persistence.path", "vitalsim.db")
	v.SetDefault("persistence.autosave", true)

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9464")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults alone, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.ClockPeriod <= 0 {
		return fmt.Errorf("engine.clock_period must be a positive duration")
	}
	if c.EngineCfg.PhysiologyPeriod <= 0 {
		return fmt.Errorf("engine.physiology_period must be a positive duration")
	}
	if c.EngineCfg.DefibNoChange < 0 || c.EngineCfg.DefibNoChange > 1 {
		return fmt.Errorf("engine.defib_no_change must be between 0.0 and 1.0")
	}
	if c.EngineCfg.VBGDriftRate < 0 || c.EngineCfg.VBGDriftRate > 1 {
		return fmt.Errorf("engine.vbg_drift_rate must be between 0.0 and 1.0")
	}
	if c.ReplicationCfg.BufferSize <= 0 {
		return fmt.Errorf("replication.buffer_size must be a positive integer")
	}
	if c.AudioCfg.MinCadenceHR <= 0 {
		return fmt.Errorf("audio.min_cadence_hr must be a positive integer")
	}
	return nil
}
