package infrastructure_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/panscan/internal/config"
	"github.com/JaimeStill/panscan/internal/infrastructure"
	"github.com/JaimeStill/panscan/pkg/storage"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Storage: storage.Config{
			Provider: storage.ProviderLocal,
			Local:    storage.LocalConfig{Root: filepath.Join(dir, "blobs")},
		},
		Scan: config.ScanConfig{
			RulesPath: filepath.Join(dir, "rules.csv"),
			UploadDir: filepath.Join(dir, "spool"),
		},
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.NewWithLogger(validConfig(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.NotNil(t, infra.Lifecycle)
	assert.NotNil(t, infra.Logger)
	assert.NotNil(t, infra.Storage)
}

func TestNewInvalidStorageProvider(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Provider = "ftp"

	_, err := infrastructure.New(cfg)
	assert.Error(t, err)
}

func TestStartPreparesDirectories(t *testing.T) {
	tests := []struct {
		name  string
		rules string
	}{
		{"missing rule table", ""},
		{"loaded rule table", "file_pattern,comments,status\nmalware,Known bad,True Positive\n"},
		{"unreadable rule table", "file_pattern,comments,status\n,empty pattern,True Positive\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			if tt.rules != "" {
				require.NoError(t, os.WriteFile(cfg.Scan.RulesPath, []byte(tt.rules), 0644))
			}

			infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.DiscardHandler))
			require.NoError(t, err)

			require.NoError(t, infra.Start())
			require.NoError(t, infra.Lifecycle.WaitForStartup())
			assert.True(t, infra.Lifecycle.Ready(), "rule problems never block readiness")

			assert.DirExists(t, cfg.Scan.UploadDir)
			assert.DirExists(t, cfg.Storage.Local.Root)
		})
	}
}

func TestStartUploadDirFailure(t *testing.T) {
	cfg := validConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Scan.UploadDir = filepath.Join(blocker, "spool")

	infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	require.NoError(t, infra.Start())
	assert.Error(t, infra.Lifecycle.WaitForStartup())
	assert.False(t, infra.Lifecycle.Ready())
}
