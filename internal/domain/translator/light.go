package translator

import (
	"github.com/amimof/huego"

	"rf-accessory-bridge/internal/domain/model"
)

type LightStrategy struct{}

func (s *LightStrategy) ToHue(state model.DeviceState) *huego.State {
	return &huego.State{
		On:        state.SwitchState,
		Bri:       PercentToBri(state.Brightness),
		Ct:        mired(state.ColorTemperature),
		Hue:       DegreesToHue(state.Hue),
		Sat:       PercentToBri(state.Saturation),
		ColorMode: "ct",
		Reachable: true,
	}
}

// ToCommands orders the writes so that saturation is known before hue, and
// skips On=true when a brightness is given since the brightness setter turns
// the light on itself.
func (s *LightStrategy) ToCommands(u StateUpdate) []Command {
	if u.On != nil && !*u.On {
		return []Command{{Kind: model.CharacteristicOn, Value: false}}
	}

	var cmds []Command
	if u.Sat != nil {
		cmds = append(cmds, Command{Kind: model.CharacteristicSaturation, Value: BriToPercent(*u.Sat)})
	}
	if u.Bri != nil {
		cmds = append(cmds, Command{Kind: model.CharacteristicBrightness, Value: BriToPercent(*u.Bri)})
	} else if u.On != nil {
		cmds = append(cmds, Command{Kind: model.CharacteristicOn, Value: true})
	}
	if u.Ct != nil {
		cmds = append(cmds, Command{Kind: model.CharacteristicColorTemperature, Value: int(*u.Ct)})
	}
	if u.Hue != nil {
		cmds = append(cmds, Command{Kind: model.CharacteristicHue, Value: HueToDegrees(*u.Hue)})
	}
	return cmds
}

func (s *LightStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "Extended color light",
		ModelID:          "LCT015",
		ManufacturerName: "Philips",
	}
}
