package translator

import (
	"github.com/amimof/huego"

	"rf-accessory-bridge/internal/domain/model"
)

// CoverStrategy exposes a window covering as a dimmable light: brightness is
// the position.
type CoverStrategy struct{}

func (s *CoverStrategy) ToHue(state model.DeviceState) *huego.State {
	return &huego.State{
		On:        state.CurrentPosition > 0,
		Bri:       PercentToBri(state.CurrentPosition),
		Reachable: true,
	}
}

func (s *CoverStrategy) ToCommands(u StateUpdate) []Command {
	switch {
	case u.Bri != nil:
		position := BriToPercent(*u.Bri)
		if u.On != nil && !*u.On {
			position = 0
		}
		return []Command{{Kind: model.CharacteristicTargetPosition, Value: position}}
	case u.On != nil && *u.On:
		return []Command{{Kind: model.CharacteristicTargetPosition, Value: 100}}
	case u.On != nil:
		return []Command{{Kind: model.CharacteristicTargetPosition, Value: 0}}
	}
	return nil
}

func (s *CoverStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "Window covering device",
		ModelID:          "LCT001",
		ManufacturerName: "Philips",
	}
}
