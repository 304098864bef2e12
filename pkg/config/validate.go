package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid
// values. Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.BackendURL == "" {
		errs = append(errs, fmt.Errorf("engine.backend_url is required"))
	}
	if c.Engine.Model == "" {
		errs = append(errs, fmt.Errorf("engine.model is required"))
	}
	if c.Engine.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("engine.max_rounds must be >= 0, got %d", c.Engine.MaxRounds))
	}

	seen := make(map[string]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("sessions[%d].id is required", i))
		}
		if s.Path == "" {
			errs = append(errs, fmt.Errorf("sessions[%d].path is required", i))
		}
		if s.ID != "" && seen[s.ID] {
			errs = append(errs, fmt.Errorf("sessions[%d].id %q is duplicated", i, s.ID))
		}
		seen[s.ID] = true
	}

	if c.Router.Enabled {
		if c.Router.BackendURL == "" {
			errs = append(errs, fmt.Errorf("router.backend_url is required when router.enabled is true"))
		}
		if c.Router.Model == "" {
			errs = append(errs, fmt.Errorf("router.model is required when router.enabled is true"))
		}
		if c.Router.Threshold < 0 || c.Router.Threshold > 1 {
			errs = append(errs, fmt.Errorf("router.threshold must be in [0,1], got %g", c.Router.Threshold))
		}
	}

	if c.History.MaxPairs <= 0 {
		errs = append(errs, fmt.Errorf("history.max_pairs must be > 0, got %d", c.History.MaxPairs))
	}

	if strings.TrimSpace(c.Scratch.Root) == "" {
		errs = append(errs, fmt.Errorf("scratch.root is required"))
	}
	if c.Scratch.TTL <= 0 {
		errs = append(errs, fmt.Errorf("scratch.ttl must be > 0, got %s", c.Scratch.TTL))
	}
	if c.Scratch.MaxMegabytes <= 0 {
		errs = append(errs, fmt.Errorf("scratch.max_megabytes must be > 0, got %d", c.Scratch.MaxMegabytes))
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Port <= 0 {
		errs = append(errs, fmt.Errorf("observability.metrics.port must be > 0, got %d", c.Observability.Metrics.Port))
	}

	return errors.Join(errs...)
}
