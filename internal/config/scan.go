package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/panscan/pkg/scan"
)

const (
	EnvScanRulesPath       = "PANSCAN_SCAN_RULES_PATH"
	EnvScanChunkSize       = "PANSCAN_SCAN_CHUNK_SIZE"
	EnvScanSplitThreshold  = "PANSCAN_SCAN_SPLIT_THRESHOLD"
	EnvScanBulkConcurrency = "PANSCAN_SCAN_BULK_CONCURRENCY"
	EnvScanUploadDir       = "PANSCAN_SCAN_UPLOAD_DIR"

	DefaultRulesPath       = "./Files/Database/classification_database.csv"
	DefaultBulkConcurrency = 4
)

// ScanConfig holds classification and splitting parameters.
// Uploads are spooled to UploadDir; an empty value uses the OS temp directory.
type ScanConfig struct {
	RulesPath       string `toml:"rules_path"`
	ChunkSize       int    `toml:"chunk_size"`
	SplitThreshold  int    `toml:"split_threshold"`
	BulkConcurrency int    `toml:"bulk_concurrency"`
	UploadDir       string `toml:"upload_dir"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ScanConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ScanConfig) Merge(overlay *ScanConfig) {
	if overlay.RulesPath != "" {
		c.RulesPath = overlay.RulesPath
	}
	if overlay.ChunkSize != 0 {
		c.ChunkSize = overlay.ChunkSize
	}
	if overlay.SplitThreshold != 0 {
		c.SplitThreshold = overlay.SplitThreshold
	}
	if overlay.BulkConcurrency != 0 {
		c.BulkConcurrency = overlay.BulkConcurrency
	}
	if overlay.UploadDir != "" {
		c.UploadDir = overlay.UploadDir
	}
}

func (c *ScanConfig) loadDefaults() {
	if c.RulesPath == "" {
		c.RulesPath = DefaultRulesPath
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = scan.DefaultChunkSize
	}
	if c.SplitThreshold == 0 {
		c.SplitThreshold = scan.DefaultChunkSize
	}
	if c.BulkConcurrency == 0 {
		c.BulkConcurrency = DefaultBulkConcurrency
	}
	if c.UploadDir == "" {
		c.UploadDir = os.TempDir()
	}
}

func (c *ScanConfig) loadEnv() {
	if v := os.Getenv(EnvScanRulesPath); v != "" {
		c.RulesPath = v
	}
	if v := os.Getenv(EnvScanUploadDir); v != "" {
		c.UploadDir = v
	}

	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt(EnvScanChunkSize, &c.ChunkSize)
	setInt(EnvScanSplitThreshold, &c.SplitThreshold)
	setInt(EnvScanBulkConcurrency, &c.BulkConcurrency)
}

func (c *ScanConfig) validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive: %d", c.ChunkSize)
	}
	if c.SplitThreshold < 1 {
		return fmt.Errorf("split_threshold must be positive: %d", c.SplitThreshold)
	}
	if c.BulkConcurrency < 1 {
		return fmt.Errorf("bulk_concurrency must be positive: %d", c.BulkConcurrency)
	}
	return nil
}
