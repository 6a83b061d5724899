package translator

import (
	"rf-accessory-bridge/internal/domain/model"
)

type Factory struct {
	strategies map[model.AccessoryType]Translator
}

func NewFactory() *Factory {
	return &Factory{
		strategies: map[model.AccessoryType]Translator{
			model.AccessoryTypeSwitch:         &SwitchStrategy{},
			model.AccessoryTypeLight:          &LightStrategy{},
			model.AccessoryTypeWindowCovering: &CoverStrategy{},
		},
	}
}

// GetTranslator picks the strategy for the accessory type, wrapped in a
// CustomStrategy when formulas are configured.
func (f *Factory) GetTranslator(cfg *model.AccessoryConfig) Translator {
	t, ok := f.strategies[cfg.Type]
	if !ok {
		t = f.strategies[model.AccessoryTypeSwitch]
	}
	if cfg.Formula != nil {
		return &CustomStrategy{Base: t, Type: cfg.Type, Formula: *cfg.Formula}
	}
	return t
}
