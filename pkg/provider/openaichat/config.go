package openaichat

import "time"

// Config holds configuration for the Chat Completions adapter.
type Config struct {
	// BaseURL is the backend URL (e.g., "http://localhost:8000").
	BaseURL string

	// APIKey for bearer authentication (optional).
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 120 * time.Second,
	}
}
