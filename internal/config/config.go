package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	// ResultsDB is the sqlite path of the round results archive. ":memory:" keeps it ephemeral.
	ResultsDB string `mapstructure:"results_db" yaml:"results_db"`
	// PublicURL is the externally reachable base URL encoded into invite QR codes.
	PublicURL string `mapstructure:"public_url" yaml:"public_url"`

	DefaultStartDelay time.Duration `mapstructure:"default_start_delay" yaml:"default_start_delay"`
	MaxStartDelay     time.Duration `mapstructure:"max_start_delay" yaml:"max_start_delay"`

	MessagesPerSecond float64 `mapstructure:"messages_per_second" yaml:"messages_per_second"`
	MessageBurst      int     `mapstructure:"message_burst" yaml:"message_burst"`
	MaxMessageBytes   int64   `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		ResultsDB:         ":memory:",
		PublicURL:         "http://localhost:3000",
		DefaultStartDelay: 3 * time.Second,
		MaxStartDelay:     30 * time.Second,
		MessagesPerSecond: 20,
		MessageBurst:      40,
		MaxMessageBytes:   64 << 10,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.ResultsDB != "" {
		c.ResultsDB = other.ResultsDB
	}
	if other.PublicURL != "" {
		c.PublicURL = other.PublicURL
	}
	if other.DefaultStartDelay != 0 {
		c.DefaultStartDelay = other.DefaultStartDelay
	}
	if other.MaxStartDelay != 0 {
		c.MaxStartDelay = other.MaxStartDelay
	}
	if other.MessagesPerSecond != 0 {
		c.MessagesPerSecond = other.MessagesPerSecond
	}
	if other.MessageBurst != 0 {
		c.MessageBurst = other.MessageBurst
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
}
