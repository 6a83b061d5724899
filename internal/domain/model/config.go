package model

import (
	"errors"
	"fmt"
	"time"
)

type LogConfig struct {
	Level string `yaml:"level"`
}

type HTTPConfig struct {
	Listen      string `yaml:"listen"`
	AdvertiseIP string `yaml:"advertise_ip"`
}

// DiscoveryConfig toggles the discovery responders; both default to on.
type DiscoveryConfig struct {
	SSDP *bool `yaml:"ssdp,omitempty"`
	MDNS *bool `yaml:"mdns,omitempty"`
}

func (d DiscoveryConfig) SSDPEnabled() bool {
	return d.SSDP == nil || *d.SSDP
}

func (d DiscoveryConfig) MDNSEnabled() bool {
	return d.MDNS == nil || *d.MDNS
}

type TransportKind string

const (
	TransportHomeAssistant TransportKind = "homeassistant"
	TransportMQTT          TransportKind = "mqtt"
	TransportNATS          TransportKind = "nats"
	TransportLog           TransportKind = "log"
)

type HomeAssistantTransportConfig struct {
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	RemoteEntity string `yaml:"remote_entity"`
}

type MQTTTransportConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type NATSTransportConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type TransportConfig struct {
	Kind          TransportKind                `yaml:"kind"`
	HomeAssistant HomeAssistantTransportConfig `yaml:"homeassistant"`
	MQTT          MQTTTransportConfig          `yaml:"mqtt"`
	NATS          NATSTransportConfig          `yaml:"nats"`
}

type HistoryConfig struct {
	Dir string `yaml:"dir"`
}

// FormulaConfig converts between the Hue API scale and the accessory scale,
// e.g. "x / 2.54". The variable is always x.
type FormulaConfig struct {
	ToHueFormula    string `yaml:"to_hue_formula,omitempty"`
	ToDeviceFormula string `yaml:"to_device_formula,omitempty"`
}

type AccessoryConfig struct {
	Name    string         `yaml:"name"`
	Type    AccessoryType  `yaml:"type"`
	HueID   string         `yaml:"hue_id,omitempty"`
	Data    DataTable      `yaml:"data"`
	Formula *FormulaConfig `yaml:"formula,omitempty"`

	// Switch lifecycle
	Stateless              bool    `yaml:"stateless,omitempty"`
	EnableAutoOn           *bool   `yaml:"enableAutoOn,omitempty"`
	EnableAutoOff          *bool   `yaml:"enableAutoOff,omitempty"`
	DisableAutomaticOn     *bool   `yaml:"disableAutomaticOn,omitempty"`
	DisableAutomaticOff    *bool   `yaml:"disableAutomaticOff,omitempty"`
	OnDuration             float64 `yaml:"onDuration,omitempty"`
	OffDuration            float64 `yaml:"offDuration,omitempty"`
	PingIPAddress          string  `yaml:"pingIPAddress,omitempty"`
	PingFrequency          float64 `yaml:"pingFrequency,omitempty"`
	PingGrace              float64 `yaml:"pingGrace,omitempty"`
	PingUseArp             bool    `yaml:"pingUseArp,omitempty"`
	PingIPAddressStateOnly bool    `yaml:"pingIPAddressStateOnly,omitempty"`
	History                *bool   `yaml:"history,omitempty"`
	NoHistory              *bool   `yaml:"noHistory,omitempty"`

	// Light
	OnDelay                      float64  `yaml:"onDelay,omitempty"`
	DefaultBrightness            int      `yaml:"defaultBrightness,omitempty"`
	DefaultColorTemperature      int      `yaml:"defaultColorTemperature,omitempty"`
	UseLastKnownBrightness       bool     `yaml:"useLastKnownBrightness,omitempty"`
	UseLastKnownColorTemperature bool     `yaml:"useLastKnownColorTemperature,omitempty"`
	Exclusives                   []string `yaml:"exclusives,omitempty"`

	// Window covering
	InitialDelay       float64 `yaml:"initialDelay,omitempty"`
	TotalDurationOpen  float64 `yaml:"totalDurationOpen,omitempty"`
	TotalDurationClose float64 `yaml:"totalDurationClose,omitempty"`
	SendStopAt0        bool    `yaml:"sendStopAt0,omitempty"`
	SendStopAt100      bool    `yaml:"sendStopAt100,omitempty"`
	AllowResend        bool    `yaml:"allowResend,omitempty"`
}

type Config struct {
	Log         LogConfig          `yaml:"log"`
	HTTP        HTTPConfig         `yaml:"http"`
	Discovery   DiscoveryConfig    `yaml:"discovery"`
	Transport   TransportConfig    `yaml:"transport"`
	History     HistoryConfig      `yaml:"history"`
	Accessories []*AccessoryConfig `yaml:"accessories"`
}

func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":80"
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportLog
	}
	if c.Transport.MQTT.Topic == "" {
		c.Transport.MQTT.Topic = "rf-bridge/send"
	}
	if c.Transport.NATS.Subject == "" {
		c.Transport.NATS.Subject = "rf-bridge.send"
	}
	if c.History.Dir == "" {
		c.History.Dir = "."
	}
	for _, a := range c.Accessories {
		a.ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, a := range c.Accessories {
		if seen[a.Name] {
			errs = append(errs, NewConfigError(a.Name, "name", "duplicate accessory name"))
		}
		seen[a.Name] = true
		if err := a.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Transport.Kind {
	case TransportHomeAssistant, TransportMQTT, TransportNATS, TransportLog:
	default:
		errs = append(errs, fmt.Errorf("transport: unknown kind %q", c.Transport.Kind))
	}
	return errors.Join(errs...)
}

func (a *AccessoryConfig) ApplyDefaults() {
	if a.PingFrequency == 0 {
		a.PingFrequency = 1
	}
	if a.PingGrace == 0 {
		a.PingGrace = 10
	}
	if a.OnDuration == 0 {
		a.OnDuration = 60
	}
	if a.OffDuration == 0 {
		a.OffDuration = 60
	}
	if a.DisableAutomaticOn != nil {
		v := !*a.DisableAutomaticOn
		a.EnableAutoOn = &v
	}
	if a.DisableAutomaticOff != nil {
		v := !*a.DisableAutomaticOff
		a.EnableAutoOff = &v
	}
	if a.OnDelay == 0 {
		a.OnDelay = 0.1
	}
	if a.DefaultBrightness == 0 {
		a.DefaultBrightness = 100
	}
	if a.DefaultColorTemperature == 0 {
		a.DefaultColorTemperature = MinColorTemperature
	}
	if a.InitialDelay == 0 {
		a.InitialDelay = 0.1
	}
}

func (a *AccessoryConfig) Validate() error {
	if a.Name == "" {
		return NewConfigError("(unnamed)", "name", "is required")
	}
	switch a.Type {
	case AccessoryTypeSwitch:
		return nil
	case AccessoryTypeLight:
		if err := a.validateStepped("brightness", "availableBrightnessSteps"); err != nil {
			return err
		}
		return a.validateStepped("colorTemperature", "availableColorTemperatureSteps")
	case AccessoryTypeWindowCovering:
		if a.TotalDurationOpen <= 0 {
			return NewConfigError(a.Name, "totalDurationOpen", "is required and must be greater than 0")
		}
		if a.TotalDurationClose <= 0 {
			return NewConfigError(a.Name, "totalDurationClose", "is required and must be greater than 0")
		}
		return nil
	default:
		return NewConfigError(a.Name, "type", fmt.Sprintf("unknown accessory type %q", a.Type))
	}
}

func (a *AccessoryConfig) validateStepped(dimension, stepsKey string) error {
	inc, dec, steps := a.Data.Has(dimension+"+"), a.Data.Has(dimension+"-"), a.Data.Has(stepsKey)
	if (inc || dec || steps) && !(inc && dec && steps) {
		return NewConfigError(a.Name, dimension, fmt.Sprintf("%s+, %s- and %s need to be set", dimension, dimension, stepsKey))
	}
	return nil
}

func (a *AccessoryConfig) AutoOnEnabled() bool {
	return a.EnableAutoOn != nil && *a.EnableAutoOn
}

func (a *AccessoryConfig) AutoOffEnabled() bool {
	return a.EnableAutoOff != nil && *a.EnableAutoOff
}

func (a *AccessoryConfig) HistoryEnabled() bool {
	return (a.History != nil && *a.History) || (a.NoHistory != nil && !*a.NoHistory)
}

// Stepped reports whether a dimension is driven by increment/decrement signals.
func (a *AccessoryConfig) Stepped(dimension string) bool {
	return a.Data.Has(dimension+"+") || a.Data.Has(dimension+"-") || a.Data.Has(steppedKey(dimension))
}

func steppedKey(dimension string) string {
	switch dimension {
	case "brightness":
		return "availableBrightnessSteps"
	case "colorTemperature":
		return "availableColorTemperatureSteps"
	}
	return ""
}

// PingInterval is the time between two liveness probes; pingFrequency is
// expressed in seconds.
func (a *AccessoryConfig) PingInterval() time.Duration {
	return Seconds(a.PingFrequency)
}
