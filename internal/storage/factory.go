// Package storage selects the artifact storage provider.
package storage

import (
	"fmt"

	"renderq/internal/config"
	"renderq/internal/ports"
	"renderq/internal/storage/localfs"
)

func NewProvider(cfg config.StorageConfig) (ports.StorageProvider, error) {
	switch cfg.Provider {
	case "", "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("localfs provider requires a storage root")
		}
		return localfs.New(cfg.LocalRoot), nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}
