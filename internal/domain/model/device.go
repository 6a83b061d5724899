package model

import (
	"time"

	"github.com/amimof/huego"
)

type AccessoryType string

const (
	AccessoryTypeSwitch         AccessoryType = "switch"
	AccessoryTypeLight          AccessoryType = "light"
	AccessoryTypeWindowCovering AccessoryType = "window-covering"
)

// CharacteristicKind identifies a value exposed to the UI layer.
type CharacteristicKind string

const (
	CharacteristicOn               CharacteristicKind = "On"
	CharacteristicBrightness       CharacteristicKind = "Brightness"
	CharacteristicColorTemperature CharacteristicKind = "ColorTemperature"
	CharacteristicHue              CharacteristicKind = "Hue"
	CharacteristicSaturation       CharacteristicKind = "Saturation"
	CharacteristicCurrentPosition  CharacteristicKind = "CurrentPosition"
	CharacteristicTargetPosition   CharacteristicKind = "TargetPosition"
	CharacteristicPositionState    CharacteristicKind = "PositionState"
	CharacteristicLastActivation   CharacteristicKind = "LastActivation"
)

// PositionState uses the HomeKit numbering.
type PositionState uint8

const (
	PositionDecreasing PositionState = 0
	PositionIncreasing PositionState = 1
	PositionStopped    PositionState = 2
)

func (p PositionState) String() string {
	switch p {
	case PositionDecreasing:
		return "closing"
	case PositionIncreasing:
		return "opening"
	case PositionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Colour temperature range in mired.
const (
	MinColorTemperature = 140
	MaxColorTemperature = 500
)

type DeviceState struct {
	SwitchState bool `json:"switchState"`

	Brightness       int `json:"brightness,omitempty"`
	ColorTemperature int `json:"colorTemperature,omitempty"`
	Hue              int `json:"hue,omitempty"`
	Saturation       int `json:"saturation,omitempty"`

	CurrentPosition int           `json:"currentPosition,omitempty"`
	TargetPosition  int           `json:"targetPosition,omitempty"`
	PositionState   PositionState `json:"positionState"`

	LastActivation time.Time `json:"lastActivation,omitempty"`
}

// ClampPercent limits v to [0,100].
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// HueMetadata is how an accessory presents itself to Hue clients.
type HueMetadata struct {
	Type             string
	ModelID          string
	ManufacturerName string
}

// Device is an accessory as seen through the Hue-compatible API.
type Device struct {
	ID       string
	Name     string
	Type     AccessoryType
	State    *huego.State
	Metadata HueMetadata
}

// AccessoryStatus is the administrative view of an accessory.
type AccessoryStatus struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Type  AccessoryType `json:"type"`
	State DeviceState   `json:"state"`
	// LastActivation is in seconds since the first history entry; nil when
	// history is disabled.
	LastActivation *int64 `json:"lastActivation,omitempty"`
}
