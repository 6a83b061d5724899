package ports

import (
	"context"

	"rf-accessory-bridge/internal/domain/model"
)

// BridgePort is what the Hue-compatible API drives.
type BridgePort interface {
	GetDevices(ctx context.Context) ([]*model.Device, error)
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	// UpdateDeviceState applies a Hue state body and returns the attributes
	// that were accepted.
	UpdateDeviceState(ctx context.Context, id string, state map[string]interface{}) (map[string]interface{}, error)
}

// AdminPort backs the administrative endpoints.
type AdminPort interface {
	GetConfig(ctx context.Context) (*model.Config, error)
	UpdateConfig(ctx context.Context, cfg *model.Config) error
	Accessories(ctx context.Context) []model.AccessoryStatus
}
