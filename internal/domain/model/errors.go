package model

import "fmt"

// ConfigError reports an accessory configuration that cannot work. It is raised
// before any signal is sent and is not recovered from.
type ConfigError struct {
	Accessory string
	Field     string
	Reason    string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s: %s", e.Accessory, e.Reason)
	}
	return fmt.Sprintf("config error: %s: %s: %s", e.Accessory, e.Field, e.Reason)
}

func NewConfigError(accessory, field, reason string) *ConfigError {
	return &ConfigError{Accessory: accessory, Field: field, Reason: reason}
}
