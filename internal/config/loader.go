package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "GROUPSHOUT"
	envConfigDefaultPath = "GROUPSHOUT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("results_db", cfg.ResultsDB)
	v.SetDefault("public_url", cfg.PublicURL)
	v.SetDefault("default_start_delay", cfg.DefaultStartDelay)
	v.SetDefault("max_start_delay", cfg.MaxStartDelay)
	v.SetDefault("messages_per_second", cfg.MessagesPerSecond)
	v.SetDefault("message_burst", cfg.MessageBurst)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil {
				if logger != nil {
					logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
				}
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.DefaultStartDelay < 0 || c.MaxStartDelay < 0 {
		return errors.New("config: start delays must not be negative")
	}
	if c.DefaultStartDelay > c.MaxStartDelay {
		return fmt.Errorf("config: default_start_delay %s exceeds max_start_delay %s", c.DefaultStartDelay, c.MaxStartDelay)
	}
	if c.MessagesPerSecond < 0 || c.MessageBurst < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	return nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
