// Package config provides unified configuration for the dialog host.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DIALOG_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the dialog host.
type Config struct {
	Engine        EngineConfig        `yaml:"engine"`
	Sessions      []SessionConfig     `yaml:"sessions"`
	Router        RouterConfig        `yaml:"router"`
	History       HistoryConfig       `yaml:"history"`
	Scratch       ScratchConfig       `yaml:"scratch"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// EngineConfig holds reasoning engine settings.
type EngineConfig struct {
	BackendURL     string  `yaml:"backend_url"`     // required
	APIKey         string  `yaml:"api_key"`         // optional
	APIKeyFile     string  `yaml:"api_key_file"`    // _file variant for api_key
	Model          string  `yaml:"model"`           // required
	Temperature    float64 `yaml:"temperature"`     // default: 0.3
	MaxRounds      int     `yaml:"max_rounds"`      // default: 10
	SystemPrompt   string  `yaml:"system_prompt"`   // optional
	ImageOperation string  `yaml:"image_operation"` // default: "load_image"
}

// SessionConfig names one capability provider to connect at startup.
type SessionConfig struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

// RouterConfig holds relevance router settings. The router is optional
// and only active when a scoring backend is configured and enabled.
type RouterConfig struct {
	Enabled       bool    `yaml:"enabled"`        // default: false
	BackendURL    string  `yaml:"backend_url"`    // required when enabled
	Model         string  `yaml:"model"`          // required when enabled
	Threshold     float64 `yaml:"threshold"`      // default: 0.5
	PipelinesPath string  `yaml:"pipelines_path"` // default: "pipelines.json"
}

// HistoryConfig bounds the committed conversation.
type HistoryConfig struct {
	MaxPairs int `yaml:"max_pairs"` // default: 20
}

// ScratchConfig holds temp resource manager settings.
type ScratchConfig struct {
	Root         string        `yaml:"root"`          // default: "temp"
	TTL          time.Duration `yaml:"ttl"`           // default: 1h
	MaxMegabytes int64         `yaml:"max_megabytes"` // default: 300
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds the Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Port    int    `yaml:"port"`    // default: 9102
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Temperature:    0.3,
			MaxRounds:      10,
			ImageOperation: "load_image",
		},
		Router: RouterConfig{
			Threshold:     0.5,
			PipelinesPath: "pipelines.json",
		},
		History: HistoryConfig{
			MaxPairs: 20,
		},
		Scratch: ScratchConfig{
			Root:         "temp",
			TTL:          time.Hour,
			MaxMegabytes: 300,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: false,
				Port:    9102,
				Path:    "/metrics",
			},
		},
	}
}
