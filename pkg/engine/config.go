package engine

// Config holds orchestrator settings.
type Config struct {
	// Model is the reasoning engine model name.
	Model string

	// Temperature for reasoning calls. Zero means backend default.
	Temperature *float64

	// MaxRounds bounds the propose/execute/observe loop within one
	// turn. Zero or negative means the default of 10.
	MaxRounds int

	// SystemPrompt seeds the conversation. Empty means no system
	// message.
	SystemPrompt string

	// ImageOperation names the operation whose results are deferred
	// and re-injected as user messages with inline image content.
	// Empty means the default "load_image".
	ImageOperation string

	// RouterThreshold is the minimum pipeline relevance score for its
	// operations to enter the narrowed catalog. Zero or negative means
	// the default of 0.5.
	RouterThreshold float64

	// MaxHistoryPairs bounds the committed history. Zero or negative
	// means the default of 20 user/assistant pairs.
	MaxHistoryPairs int
}

func (c Config) maxRounds() int {
	if c.MaxRounds <= 0 {
		return 10
	}
	return c.MaxRounds
}

func (c Config) imageOperation() string {
	if c.ImageOperation == "" {
		return "load_image"
	}
	return c.ImageOperation
}

func (c Config) routerThreshold() float64 {
	if c.RouterThreshold <= 0 {
		return 0.5
	}
	return c.RouterThreshold
}

func (c Config) maxHistoryPairs() int {
	if c.MaxHistoryPairs <= 0 {
		return 20
	}
	return c.MaxHistoryPairs
}
