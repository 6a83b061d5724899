package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"rf-accessory-bridge/internal/domain/model"
)

// FileConfigRepository stores the configuration as YAML. JSON files are read
// as well, yaml.v3 accepts them unchanged.
type FileConfigRepository struct {
	filepath string
	mu       sync.RWMutex
}

// legacyConfig is the plugin layout of the original homebridge config.json:
// the accessories live under the BroadlinkRM platform entry.
type legacyConfig struct {
	Platforms []legacyPlatform `yaml:"platforms"`
}

type legacyPlatform struct {
	Platform    string                   `yaml:"platform"`
	Accessories []*model.AccessoryConfig `yaml:"accessories"`
}

func NewFileConfigRepository(filepath string) *FileConfigRepository {
	return &FileConfigRepository{filepath: filepath}
}

func (r *FileConfigRepository) Get(ctx context.Context) (*model.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &model.Config{}
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Migration check: no accessories at the top level, look for a platform
	// section.
	if len(cfg.Accessories) == 0 {
		cfg.Accessories = migrate(data)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

func migrate(data []byte) []*model.AccessoryConfig {
	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return nil
	}

	var accessories []*model.AccessoryConfig
	for _, p := range legacy.Platforms {
		if p.Platform != "BroadlinkRM" {
			continue
		}
		for _, a := range p.Accessories {
			if a == nil || a.Name == "" {
				continue
			}
			accessories = append(accessories, a)
		}
	}
	return accessories
}

func (r *FileConfigRepository) Save(ctx context.Context, config *model.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(r.filepath, data, 0644)
}
