package api

import (
	"github.com/JaimeStill/panscan/internal/config"
	"github.com/JaimeStill/panscan/internal/infrastructure"
	"github.com/JaimeStill/panscan/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Storage:   infra.Storage,
			Scan:      infra.Scan,
		},
		Pagination: cfg.API.Pagination,
	}
}
