// Package config provides agent configuration management with support for
// a JSON settings file, a separate JSON credential store, environment
// variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Config holds the agent's full runtime configuration: ambient
// application/logging settings plus the user-editable Settings and
// Credentials that are persisted to disk.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Settings    Settings
	Credentials Credentials
}

// AppConfig holds ambient application-level configuration.
type AppConfig struct {
	Environment string
	// BaseDir is the agent's working directory, containing config.json,
	// credentials.json, state.json, and the inbox staging tree.
	BaseDir string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// Settings is the user-editable configuration persisted at
// "<base>/config.json", camelCase on the wire.
type Settings struct {
	ServerUrl       string `json:"serverUrl" validate:"required,url"`
	MaxStorageGb    int    `json:"maxStorageGb" validate:"min=1"`
	FfmpegPath      string `json:"ffmpegPath" validate:"required"`
	AutoImport      bool   `json:"autoImport"`
	AutoStart       bool   `json:"autoStart"`
	WatchIntervalMs int    `json:"watchIntervalMs" validate:"min=250"`
}

// DefaultSettings returns the settings values used when config.json is
// absent or a field is unset.
func DefaultSettings() Settings {
	return Settings{
		ServerUrl:       "http://localhost:8787",
		MaxStorageGb:    50,
		FfmpegPath:      "ffmpeg",
		AutoImport:      true,
		AutoStart:       false,
		WatchIntervalMs: 3000,
	}
}

// Credentials is the API client credential pair persisted at
// "<base>/credentials.json".
type Credentials struct {
	ClientId     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

var validate = validator.New()

// Load builds configuration with precedence:
//  1. Command-line flags (highest priority).
//  2. Environment variables.
//  3. .env file.
//  4. config.json / credentials.json under baseDir.
//  5. Default values (lowest priority).
//
// baseDir is created if it does not already exist.
func Load(baseDir string) (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	serverURL := flag.String("server-url", "", "Ingest server base URL")
	ffmpegPath := flag.String("ffmpeg-path", "", "Path to ffmpeg binary")
	envFile := flag.String("env-file", ".env", "Path to .env file")
	flag.Parse()

	_ = loadEnvFile(*envFile)

	baseDir, err := expandPath(baseDir, baseDir)
	if err != nil {
		return nil, fmt.Errorf("expand base dir: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}

	onDisk := DefaultSettings()
	if fileSettings, err := readSettingsFile(filepath.Join(baseDir, "config.json")); err == nil {
		onDisk = mergeSettings(onDisk, fileSettings)
	}

	creds, _ := readCredentialsFile(filepath.Join(baseDir, "credentials.json"))

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			BaseDir:     baseDir,
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Settings: Settings{
			ServerUrl:       getConfigValue(*serverURL, "SERVER_URL", onDisk.ServerUrl),
			MaxStorageGb:    getIntConfigValue("", "MAX_STORAGE_GB", onDisk.MaxStorageGb),
			FfmpegPath:      getConfigValue(*ffmpegPath, "FFMPEG_PATH", onDisk.FfmpegPath),
			AutoImport:      getBoolConfigValue("", "AUTO_IMPORT", onDisk.AutoImport),
			AutoStart:       getBoolConfigValue("", "AUTO_START", onDisk.AutoStart),
			WatchIntervalMs: getIntConfigValue("", "WATCH_INTERVAL_MS", onDisk.WatchIntervalMs),
		},
		Credentials: creds,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return fmt.Errorf("ENV is required")
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if err := validate.Struct(c.Settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	return nil
}

// SaveSettings persists Settings to "<base>/config.json".
func SaveSettings(baseDir string, s Settings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return writeJSONFile(filepath.Join(baseDir, "config.json"), s)
}

// SaveCredentials persists Credentials to "<base>/credentials.json".
func SaveCredentials(baseDir string, c Credentials) error {
	return writeJSONFile(filepath.Join(baseDir, "credentials.json"), c)
}

type agentIdentity struct {
	AgentID string `json:"agentId"`
}

// LoadOrCreateAgentID returns this installation's persistent agent id,
// generating and saving one to "<base>/agent_id.json" on first run.
func LoadOrCreateAgentID(baseDir string) (string, error) {
	path := filepath.Join(baseDir, "agent_id.json")

	data, err := os.ReadFile(path) //#nosec G304 -- base dir is operator-controlled
	if err == nil {
		var identity agentIdentity
		if err := json.Unmarshal(data, &identity); err == nil && identity.AgentID != "" {
			return identity.AgentID, nil
		}
	}

	identity := agentIdentity{AgentID: uuid.New().String()}
	if err := writeJSONFile(path, identity); err != nil {
		return "", fmt.Errorf("save agent id: %w", err)
	}
	return identity.AgentID, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readSettingsFile(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path) //#nosec G304 -- base dir is operator-controlled
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

func readCredentialsFile(path string) (Credentials, error) {
	var c Credentials
	data, err := os.ReadFile(path) //#nosec G304 -- base dir is operator-controlled
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// mergeSettings overlays non-zero fields from file onto base.
func mergeSettings(base, file Settings) Settings {
	if file.ServerUrl != "" {
		base.ServerUrl = file.ServerUrl
	}
	if file.MaxStorageGb != 0 {
		base.MaxStorageGb = file.MaxStorageGb
	}
	if file.FfmpegPath != "" {
		base.FfmpegPath = file.FfmpegPath
	}
	base.AutoImport = file.AutoImport
	base.AutoStart = file.AutoStart
	if file.WatchIntervalMs != 0 {
		base.WatchIntervalMs = file.WatchIntervalMs
	}
	return base
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		path = defaultPath
	}
	if path == "" {
		return "", nil
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

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

// WatchInterval returns Settings.WatchIntervalMs as a time.Duration.
func (s Settings) WatchInterval() time.Duration {
	return time.Duration(s.WatchIntervalMs) * time.Millisecond
}
