package translator

import (
	"math"

	"github.com/Knetic/govaluate"
	"github.com/amimof/huego"

	"rf-accessory-bridge/internal/domain/model"
)

// CustomStrategy replaces the brightness conversion of another strategy with
// user formulas over x.
type CustomStrategy struct {
	Base    Translator
	Type    model.AccessoryType
	Formula model.FormulaConfig
}

func (s *CustomStrategy) ToHue(state model.DeviceState) *huego.State {
	hue := s.Base.ToHue(state)
	if s.Formula.ToHueFormula == "" {
		return hue
	}

	input := state.Brightness
	if s.Type == model.AccessoryTypeWindowCovering {
		input = state.CurrentPosition
	}
	hue.Bri = uint8(clamp(math.Round(s.evaluate(s.Formula.ToHueFormula, float64(input))), 0, 254))
	return hue
}

func (s *CustomStrategy) ToCommands(u StateUpdate) []Command {
	cmds := s.Base.ToCommands(u)
	if u.Bri == nil || s.Formula.ToDeviceFormula == "" {
		return cmds
	}

	output := model.ClampPercent(int(math.Round(s.evaluate(s.Formula.ToDeviceFormula, float64(*u.Bri)))))
	for i, c := range cmds {
		switch c.Kind {
		case model.CharacteristicBrightness, model.CharacteristicTargetPosition:
			// an explicit off keeps its zero position
			if c.Value == 0 && u.On != nil && !*u.On {
				continue
			}
			cmds[i].Value = output
		}
	}
	return cmds
}

func (s *CustomStrategy) GetMetadata() model.HueMetadata {
	return s.Base.GetMetadata()
}

// evaluate handles simple formulas like "x * 2.54" or "x / 2.54 + 7"
func (s *CustomStrategy) evaluate(formula string, x float64) float64 {
	expression, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return x
	}
	parameters := make(map[string]interface{}, 1)
	parameters["x"] = x

	result, err := expression.Evaluate(parameters)
	if err != nil {
		return x
	}

	if val, ok := result.(float64); ok {
		return val
	}
	return x
}
