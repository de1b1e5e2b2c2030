// Package infrastructure provides core service initialization for application startup.
// It assembles the dependencies (lifecycle, logging, blob storage) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/panscan/internal/config"
	"github.com/JaimeStill/panscan/pkg/lifecycle"
	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Storage   storage.System
	Scan      config.ScanConfig
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates an Infrastructure that logs through logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Storage:   store,
		Scan:      cfg.Scan,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// The upload spool directory is created and the rule table is checked during startup.
func (i *Infrastructure) Start() error {
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}

	i.Lifecycle.OnStartup(func() error {
		if err := os.MkdirAll(i.Scan.UploadDir, 0755); err != nil {
			return fmt.Errorf("upload dir: %w", err)
		}
		return nil
	})

	i.Lifecycle.OnStartup(i.checkRules)
	return nil
}

// checkRules reports on the configured rule table. A missing or unreadable
// table is a warning only; every request reloads it.
func (i *Infrastructure) checkRules() error {
	logger := i.Logger.With("system", "rules")

	table, err := scan.LoadRules(i.Scan.RulesPath)
	if err != nil {
		logger.Warn("rule table unreadable", "path", i.Scan.RulesPath, "error", err)
		return nil
	}
	if table.Len() == 0 {
		logger.Warn("rule table empty or missing; every row will be Not Found", "path", i.Scan.RulesPath)
		return nil
	}

	for _, r := range table.Unreachable() {
		logger.Warn("unreachable rule", "pattern", r.Pattern)
	}
	logger.Info("rule table loaded", "path", i.Scan.RulesPath, "rules", table.Len())
	return nil
}
