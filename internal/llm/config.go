// Package llm wraps the multimodal model used to turn reference images into
// generation prompts and to review campaign videos.
package llm

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierStandard is for image understanding and prompt writing
	TierStandard ModelTier = "standard"
	// TierPrecise is for structured analysis that must follow a fixed format
	TierPrecise ModelTier = "precise"
)

// Config holds the model configuration for the application
type Config struct {
	Models      map[ModelTier]string
	Temperature float32
	// Temperatures overrides Temperature for individual tiers.
	Temperatures map[ModelTier]float32
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierStandard: "gemini-2.0-flash",
			TierPrecise:  "gemini-2.0-flash",
		},
		Temperature: 0.4,
		Temperatures: map[ModelTier]float32{
			TierPrecise: 0.1,
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Unknown tiers fall back to standard
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	return ""
}

// GetTemperature returns the sampling temperature for a given tier
func (c *Config) GetTemperature(tier ModelTier) float32 {
	if t, ok := c.Temperatures[tier]; ok {
		return t
	}
	return c.Temperature
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Models:       make(map[ModelTier]string, len(c.Models)+1),
		Temperature:  c.Temperature,
		Temperatures: make(map[ModelTier]float32, len(c.Temperatures)),
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	for k, v := range c.Temperatures {
		newConfig.Temperatures[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
