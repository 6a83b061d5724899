package translator

import (
	"fmt"
	"math"

	"github.com/amimof/huego"

	"rf-accessory-bridge/internal/domain/model"
)

// Translator defines the interface for translating between Hue API states and
// accessory characteristics
type Translator interface {
	ToHue(state model.DeviceState) *huego.State
	ToCommands(update StateUpdate) []Command
	GetMetadata() model.HueMetadata
}

// Command is one characteristic write. Value is a bool for On and an int for
// every other kind.
type Command struct {
	Kind  model.CharacteristicKind
	Value interface{}
}

// StateUpdate is the body of PUT /lights/{id}/state. Absent fields are nil.
type StateUpdate struct {
	On  *bool
	Bri *uint8
	Ct  *uint16
	Hue *uint16
	Sat *uint8
}

// ParseStateUpdate reads the decoded JSON body of a state change.
func ParseStateUpdate(body map[string]interface{}) (StateUpdate, error) {
	var u StateUpdate
	for k, v := range body {
		switch k {
		case "on":
			on, ok := v.(bool)
			if !ok {
				return u, fmt.Errorf("parameter on: invalid value %v", v)
			}
			u.On = &on
		case "bri", "sat":
			n, ok := number(v)
			if !ok {
				return u, fmt.Errorf("parameter %s: invalid value %v", k, v)
			}
			b := uint8(clamp(n, 0, 254))
			if k == "bri" {
				u.Bri = &b
			} else {
				u.Sat = &b
			}
		case "ct", "hue":
			n, ok := number(v)
			if !ok {
				return u, fmt.Errorf("parameter %s: invalid value %v", k, v)
			}
			if k == "ct" {
				c := uint16(clamp(n, 153, 500))
				u.Ct = &c
			} else {
				h := uint16(clamp(n, 0, 65535))
				u.Hue = &h
			}
		}
	}
	return u, nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// BriToPercent maps Hue brightness 0..254 onto 0..100.
func BriToPercent(bri uint8) int {
	return int(math.Round(float64(bri) * 100 / 254))
}

// PercentToBri maps 0..100 onto Hue brightness; any non-zero value is at
// least 1.
func PercentToBri(p int) uint8 {
	p = model.ClampPercent(p)
	bri := uint8(math.Round(float64(p) * 254 / 100))
	if p > 0 && bri == 0 {
		bri = 1
	}
	return bri
}

// HueToDegrees maps Hue 0..65535 onto 0..360.
func HueToDegrees(hue uint16) int {
	return int(math.Round(float64(hue) * 360 / 65535))
}

func DegreesToHue(deg int) uint16 {
	return uint16(math.Round(clamp(float64(deg), 0, 360) * 65535 / 360))
}

func mired(ct int) uint16 {
	return uint16(clamp(float64(ct), 153, 500))
}
