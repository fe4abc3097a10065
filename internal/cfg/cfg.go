// Package cfg loads service configuration from an optional YAML file
// with environment variable overrides. Every setting has a sensible
// default, so the service starts with no configuration at all.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	Port            int
	MetricsPort     int
	DataPath        string
	LogLevel        string
	PrettyLogs      bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	HistoryLimit    int
	ForecastSeed    int64
}

type ConfigFile struct {
	Server struct {
		Port         int    `yaml:"port"`
		MetricsPort  int    `yaml:"metricsPort"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`

	System struct {
		DataPath        string `yaml:"dataPath"`
		LogLevel        string `yaml:"logLevel"`
		PrettyLogs      bool   `yaml:"prettyLogs"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"system"`

	ML struct {
		HistoryLimit int   `yaml:"historyLimit"`
		ForecastSeed int64 `yaml:"forecastSeed"`
	} `yaml:"ml"`
}

func Load() (Settings, error) {
	var config ConfigFile

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	settings := Settings{
		Port:            getIntFromEnvOrConfig("PORT", config.Server.Port, 8000),
		MetricsPort:     getIntFromEnvOrConfig("METRICS_PORT", config.Server.MetricsPort, 9090),
		DataPath:        getEnvOrDefault("DATA_PATH", config.System.DataPath), // optional
		LogLevel:        withDefault(getEnvOrDefault("LOG_LEVEL", config.System.LogLevel), "info"),
		PrettyLogs:      getBoolFromEnvOrConfig("PRETTY_LOGS", config.System.PrettyLogs),
		ReadTimeout:     getDurationFromEnvOrConfig("READ_TIMEOUT", config.Server.ReadTimeout, 10*time.Second),
		WriteTimeout:    getDurationFromEnvOrConfig("WRITE_TIMEOUT", config.Server.WriteTimeout, 30*time.Second),
		ShutdownTimeout: getDurationFromEnvOrConfig("SHUTDOWN_TIMEOUT", config.System.ShutdownTimeout, 10*time.Second),
		HistoryLimit:    getIntFromEnvOrConfig("HISTORY_LIMIT", config.ML.HistoryLimit, 100),
		ForecastSeed:    getInt64FromEnv("FORECAST_SEED", config.ML.ForecastSeed),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnv(key string, configValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

func getDurationFromEnvOrConfig(key, configValue string, defaultValue time.Duration) time.Duration {
	if env := os.Getenv(key); env != "" {
		if d, err := time.ParseDuration(env); err == nil {
			return d
		}
	}
	if configValue != "" {
		if d, err := time.ParseDuration(configValue); err == nil {
			return d
		}
	}
	return defaultValue
}

func validateSettings(settings *Settings) error {
	if settings.Port < 1 || settings.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", settings.Port)
	}
	if settings.MetricsPort < 1 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1 and 65535, got %d", settings.MetricsPort)
	}
	if settings.MetricsPort == settings.Port {
		return fmt.Errorf("metrics port must differ from the API port, both are %d", settings.Port)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got %q", settings.LogLevel)
	}

	if settings.ReadTimeout < time.Second || settings.ReadTimeout > time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 1m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 1m, got %v", settings.ShutdownTimeout)
	}

	if settings.HistoryLimit < 10 || settings.HistoryLimit > 100000 {
		return fmt.Errorf("history limit must be between 10 and 100000, got %d", settings.HistoryLimit)
	}

	return nil
}
