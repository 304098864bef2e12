package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, DIALOG_CONFIG env, ./config.yaml, /etc/dialog/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. DIALOG_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/dialog/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("DIALOG_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/dialog/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps DIALOG_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DIALOG_BACKEND_URL"); v != "" {
		cfg.Engine.BackendURL = v
	}
	if v := os.Getenv("DIALOG_MODEL"); v != "" {
		cfg.Engine.Model = v
	}
	if v := os.Getenv("DIALOG_API_KEY"); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := os.Getenv("DIALOG_SYSTEM_PROMPT"); v != "" {
		cfg.Engine.SystemPrompt = v
	}
	if v := os.Getenv("DIALOG_ROUTER_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Router.Enabled = enabled
		}
	}
	if v := os.Getenv("DIALOG_ROUTER_BACKEND_URL"); v != "" {
		cfg.Router.BackendURL = v
	}
	if v := os.Getenv("DIALOG_ROUTER_MODEL"); v != "" {
		cfg.Router.Model = v
	}
	if v := os.Getenv("DIALOG_ROUTER_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Router.Threshold = threshold
		}
	}
	if v := os.Getenv("DIALOG_HISTORY_PAIRS"); v != "" {
		if pairs, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxPairs = pairs
		}
	}
	if v := os.Getenv("DIALOG_SCRATCH_ROOT"); v != "" {
		cfg.Scratch.Root = v
	}

	// DIALOG_SESSIONS: JSON array of session configs.
	if v := os.Getenv("DIALOG_SESSIONS"); v != "" {
		sessions, err := parseSessionsJSON(v)
		if err == nil && len(sessions) > 0 {
			cfg.Sessions = sessions
		}
	}
}

// parseSessionsJSON parses a JSON array of session configurations.
func parseSessionsJSON(jsonStr string) ([]SessionConfig, error) {
	var sessions []SessionConfig
	if err := json.Unmarshal([]byte(jsonStr), &sessions); err != nil {
		return nil, fmt.Errorf("parsing sessions JSON: %w", err)
	}
	return sessions, nil
}

// resolveFileReferences reads _file fields and populates the
// corresponding value fields when those are empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.Engine.APIKeyFile != "" && cfg.Engine.APIKey == "" {
		val, err := readSecretFile(cfg.Engine.APIKeyFile)
		if err != nil {
			return fmt.Errorf("engine.api_key_file: %w", err)
		}
		cfg.Engine.APIKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
