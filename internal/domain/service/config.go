package service

import (
	"context"
	"fmt"

	"rf-accessory-bridge/internal/domain/model"
)

func (s *BridgeService) GetConfig(ctx context.Context) (*model.Config, error) {
	return s.configRepo.Get(ctx)
}

// UpdateConfig validates and saves cfg, then rebuilds the registry from it.
func (s *BridgeService) UpdateConfig(ctx context.Context, cfg *model.Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := s.configRepo.Save(ctx, cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	// accessories must outlive the request that reconfigured them
	return s.Setup(context.WithoutCancel(ctx), cfg)
}
