package translator

import (
	"github.com/amimof/huego"

	"rf-accessory-bridge/internal/domain/model"
)

type SwitchStrategy struct{}

func (s *SwitchStrategy) ToHue(state model.DeviceState) *huego.State {
	return &huego.State{
		On:        state.SwitchState,
		Reachable: true,
	}
}

func (s *SwitchStrategy) ToCommands(u StateUpdate) []Command {
	if u.On == nil {
		return nil
	}
	return []Command{{Kind: model.CharacteristicOn, Value: *u.On}}
}

func (s *SwitchStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "On/Off plug-in unit",
		ModelID:          "LOM001",
		ManufacturerName: "Philips",
	}
}
