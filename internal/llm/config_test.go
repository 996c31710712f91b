package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "gemini-2.0-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.0-flash", config.GetModel(TierPrecise))
	assert.InDelta(t, 0.4, config.GetTemperature(TierStandard), 0.0001)
	assert.InDelta(t, 0.1, config.GetTemperature(TierPrecise), 0.0001)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Models: map[ModelTier]string{
			TierStandard: "fallback-model",
		},
	}

	// Unknown tiers fall back to standard
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
	assert.Equal(t, "fallback-model", config.GetModel(TierPrecise))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{Models: map[ModelTier]string{}}
	assert.Equal(t, "", config.GetModel(TierStandard))
}

func TestGetTemperature_NoOverrides(t *testing.T) {
	config := &Config{Temperature: 0.7}
	assert.InDelta(t, 0.7, config.GetTemperature(TierPrecise), 0.0001)
}

func TestWithModel(t *testing.T) {
	base := DefaultConfig()
	custom := base.WithModel(TierStandard, "gemini-2.5-flash")

	assert.Equal(t, "gemini-2.5-flash", custom.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.0-flash", base.GetModel(TierStandard), "original must be unchanged")
	assert.Equal(t, base.Temperature, custom.Temperature)
	assert.Equal(t, base.Temperatures, custom.Temperatures)

	custom.Temperatures[TierPrecise] = 0.9
	assert.InDelta(t, 0.1, base.GetTemperature(TierPrecise), 0.0001, "overrides are copied")
}
