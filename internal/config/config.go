package config

import "time"

// Config holds gateway configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	RedisURL          string        `mapstructure:"redis_url" yaml:"redis_url"`
	NatsURL           string        `mapstructure:"nats_url" yaml:"nats_url"`
	ThrottleInterval  time.Duration `mapstructure:"throttle_interval" yaml:"throttle_interval"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	EventLogCap       int           `mapstructure:"event_log_cap" yaml:"event_log_cap"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3001",
		RedisURL:          "redis://localhost:6379",
		NatsURL:           "nats://localhost:4222",
		ThrottleInterval:  100 * time.Millisecond,
		SweepInterval:     10 * time.Second,
		EventLogCap:       20,
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.RedisURL != "" {
		c.RedisURL = other.RedisURL
	}
	if other.NatsURL != "" {
		c.NatsURL = other.NatsURL
	}
	if other.ThrottleInterval != 0 {
		c.ThrottleInterval = other.ThrottleInterval
	}
	if other.SweepInterval != 0 {
		c.SweepInterval = other.SweepInterval
	}
	if other.EventLogCap != 0 {
		c.EventLogCap = other.EventLogCap
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}
