package loader

import (
	"github.com/xhad/qafilter/internal/types"
	"github.com/xhad/qafilter/pkg/config"
)

// FromConfig returns a file loader when a local file is configured and a
// datasets-server loader otherwise.
func FromConfig(cfg config.DatasetConfig, onProgress func(loaded, total int)) (types.Loader, error) {
	if cfg.File != "" {
		return NewFile(cfg.File), nil
	}

	return NewHubWithConfig(HubConfig{
		Endpoint:   cfg.Endpoint,
		Dataset:    cfg.Name,
		Config:     cfg.Config,
		Split:      cfg.Split,
		Token:      cfg.Token,
		PageSize:   cfg.PageSize,
		MaxRows:    cfg.MaxRows,
		RateLimit:  cfg.RateLimit,
		OnProgress: onProgress,
	})
}
