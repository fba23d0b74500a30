// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Storage     StorageConfig
	Server      ServerConfig
	Maintenance MaintenanceConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level    string
	FilePath string // Optional; rotated by lumberjack when set
}

// StorageConfig holds the locations of every store.
type StorageConfig struct {
	// BasePath holds the primary store, the reference store, the primary
	// blob store and the search index.
	BasePath string
	// StagingPath is the area shared with the capture flow (staging db and
	// staged image bytes). Defaults to {BasePath}/staging.
	StagingPath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
}

// MaintenanceConfig controls when reconciliation and migration are triggered.
type MaintenanceConfig struct {
	// ForegroundInterval is how often the daemon behaves as if the app came
	// to the foreground (persist staged clips, then reconcile).
	ForegroundInterval time.Duration
	// TriggerRate is the maximum number of triggers per second accepted
	// from any single source (timer, watcher, remote feed, API).
	TriggerRate float64
	// WatchStaging enables the filesystem watcher on the staging area.
	WatchStaging bool
}

// Derived store locations.

// PrimaryDBPath returns the primary SQLite database path.
func (c *Config) PrimaryDBPath() string { return filepath.Join(c.Storage.BasePath, "clips.db") }

// ReferencePath returns the Badger directory of the reference store.
func (c *Config) ReferencePath() string { return filepath.Join(c.Storage.BasePath, "reference") }

// ImagesPath returns the primary blob store directory.
func (c *Config) ImagesPath() string { return filepath.Join(c.Storage.BasePath, "images") }

// SearchPath returns the search index directory.
func (c *Config) SearchPath() string { return filepath.Join(c.Storage.BasePath, "search") }

// StagingDBPath returns the staging SQLite database path.
func (c *Config) StagingDBPath() string { return filepath.Join(c.Storage.StagingPath, "staging.db") }

// StagingImagesPath returns the staging blob area.
func (c *Config) StagingImagesPath() string { return filepath.Join(c.Storage.StagingPath, "images") }

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("clipbox", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile := fs.String("log-file", "", "Write logs to a rotated file instead of stdout")
	dataPath := fs.String("data-path", "", "Base path for the primary and reference stores")
	stagingPath := fs.String("staging-path", "", "Path of the staging area shared with the capture flow")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: any)")

	foregroundInterval := fs.String("foreground-interval", "", "Interval of periodic foreground maintenance (default: 5m)")
	triggerRate := fs.String("trigger-rate", "", "Max maintenance triggers per second per source (default: 1)")
	watchStaging := fs.String("watch-staging", "", "Watch the staging area for new captures (default: true)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:    getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			FilePath: getConfigValue(*logFile, "LOG_FILE", ""),
		},
		Storage: StorageConfig{
			BasePath:    getConfigValue(*dataPath, "DATA_PATH", ""),
			StagingPath: getConfigValue(*stagingPath, "STAGING_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "")),
		},
		Maintenance: MaintenanceConfig{
			TriggerRate:  getFloatConfigValue(*triggerRate, "TRIGGER_RATE", 1),
			WatchStaging: getBoolConfigValue(*watchStaging, "WATCH_STAGING", true),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dest      *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*foregroundInterval, "FOREGROUND_INTERVAL", "5m", &cfg.Maintenance.ForegroundInterval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dest = parsed
	}

	if err := cfg.expandStoragePaths(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Storage.StagingPath == "" {
		return errors.New("staging path cannot be empty after expansion")
	}

	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Maintenance.ForegroundInterval <= 0 {
		return errors.New("foreground interval must be positive")
	}
	if c.Maintenance.TriggerRate <= 0 {
		return errors.New("trigger rate must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStoragePaths resolves the data path (default ~/ClipBox) and the
// staging path (default {data}/staging).
func (c *Config) expandStoragePaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Storage.BasePath, filepath.Join(homeDir, "ClipBox"))
	if err != nil {
		return err
	}
	c.Storage.BasePath = base

	staging, err := expandPath(c.Storage.StagingPath, filepath.Join(base, "staging"))
	if err != nil {
		return err
	}
	c.Storage.StagingPath = staging
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
// Variables already present in the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
