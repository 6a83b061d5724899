package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(signals map[string]string, numbers map[string]int) DataTable {
	var t DataTable
	for k, v := range signals {
		t.Set(k, Signal(v))
	}
	for k, n := range numbers {
		t.SetNumber(k, n)
	}
	return t
}

func TestAccessoryConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   AccessoryConfig
		field string
	}{
		{
			name: "switch",
			cfg:  AccessoryConfig{Name: "Fan", Type: AccessoryTypeSwitch},
		},
		{
			name: "light with brightness keys",
			cfg:  AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(map[string]string{"on": "ON", "brightness50": "B50"}, nil)},
		},
		{
			name: "light with complete stepped brightness",
			cfg: AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(
				map[string]string{"brightness+": "UP", "brightness-": "DOWN"},
				map[string]int{"availableBrightnessSteps": 10})},
		},
		{
			name:  "light with only brightness+",
			cfg:   AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(map[string]string{"brightness+": "UP"}, nil)},
			field: "brightness",
		},
		{
			name: "light with brightness+ and brightness- but no steps",
			cfg: AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(
				map[string]string{"brightness+": "UP", "brightness-": "DOWN"}, nil)},
			field: "brightness",
		},
		{
			name: "light with steps but no brightness-",
			cfg: AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(
				map[string]string{"brightness+": "UP"},
				map[string]int{"availableBrightnessSteps": 10})},
			field: "brightness",
		},
		{
			name: "light with zero steps",
			cfg: AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(
				map[string]string{"brightness+": "UP", "brightness-": "DOWN"},
				map[string]int{"availableBrightnessSteps": 0})},
			field: "brightness",
		},
		{
			name: "light with only colorTemperature-",
			cfg: AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(
				map[string]string{"brightness100": "B", "colorTemperature-": "WARMER"}, nil)},
			field: "colorTemperature",
		},
		{
			name: "light with only colour temperature steps",
			cfg: AccessoryConfig{Name: "Lamp", Type: AccessoryTypeLight, Data: table(
				nil, map[string]int{"availableColorTemperatureSteps": 5})},
			field: "colorTemperature",
		},
		{
			name: "cover",
			cfg:  AccessoryConfig{Name: "Blind", Type: AccessoryTypeWindowCovering, TotalDurationOpen: 20, TotalDurationClose: 18},
		},
		{
			name:  "cover without open duration",
			cfg:   AccessoryConfig{Name: "Blind", Type: AccessoryTypeWindowCovering, TotalDurationClose: 18},
			field: "totalDurationOpen",
		},
		{
			name:  "cover with negative open duration",
			cfg:   AccessoryConfig{Name: "Blind", Type: AccessoryTypeWindowCovering, TotalDurationOpen: -1, TotalDurationClose: 18},
			field: "totalDurationOpen",
		},
		{
			name:  "cover without close duration",
			cfg:   AccessoryConfig{Name: "Blind", Type: AccessoryTypeWindowCovering, TotalDurationOpen: 20},
			field: "totalDurationClose",
		},
		{
			name:  "unknown type",
			cfg:   AccessoryConfig{Name: "Thing", Type: "fan"},
			field: "type",
		},
		{
			name:  "unnamed",
			cfg:   AccessoryConfig{Type: AccessoryTypeSwitch},
			field: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		cfg := &Config{Accessories: []*AccessoryConfig{
			{Name: "Fan", Type: AccessoryTypeSwitch},
			{Name: "Fan", Type: AccessoryTypeSwitch},
		}}
		cfg.ApplyDefaults()

		var cfgErr *ConfigError
		require.True(t, errors.As(cfg.Validate(), &cfgErr))
		assert.Equal(t, "name", cfgErr.Field)
	})

	t.Run("unknown transport", func(t *testing.T) {
		cfg := &Config{Transport: TransportConfig{Kind: "carrier-pigeon"}}
		cfg.ApplyDefaults()
		assert.ErrorContains(t, cfg.Validate(), "carrier-pigeon")
	})

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := &Config{}
		cfg.ApplyDefaults()
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, TransportLog, cfg.Transport.Kind)
	})

	t.Run("collects every accessory error", func(t *testing.T) {
		cfg := &Config{Accessories: []*AccessoryConfig{
			{Name: "Lamp", Type: AccessoryTypeLight, Data: table(map[string]string{"brightness-": "DOWN"}, nil)},
			{Name: "Blind", Type: AccessoryTypeWindowCovering, TotalDurationOpen: 20},
		}}
		cfg.ApplyDefaults()

		err := cfg.Validate()
		assert.ErrorContains(t, err, "brightness")
		assert.ErrorContains(t, err, "totalDurationClose")
	})
}
