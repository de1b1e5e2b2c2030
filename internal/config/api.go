package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/panscan/pkg/formatting"
	"github.com/JaimeStill/panscan/pkg/middleware"
	"github.com/JaimeStill/panscan/pkg/openapi"
	"github.com/JaimeStill/panscan/pkg/pagination"
)

const (
	EnvAPIBasePath      = "PANSCAN_API_BASE_PATH"
	EnvAPIMaxUploadSize = "PANSCAN_API_MAX_UPLOAD_SIZE"

	// DefaultMaxUploadSize matches the 2GB request ceiling of the upload forms.
	DefaultMaxUploadSize = "2GB"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "PANSCAN_CORS_ENABLED",
	Origins:          "PANSCAN_CORS_ORIGINS",
	AllowedMethods:   "PANSCAN_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "PANSCAN_CORS_ALLOWED_HEADERS",
	AllowCredentials: "PANSCAN_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "PANSCAN_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "PANSCAN_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "PANSCAN_PAGINATION_MAX_PAGE_SIZE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "PANSCAN_OPENAPI_TITLE",
	Description: "PANSCAN_OPENAPI_DESCRIPTION",
}

// APIConfig holds API routing, upload limits, CORS, pagination, and OpenAPI settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Finalize guarantees it parses.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = DefaultMaxUploadSize
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
}

func (c *APIConfig) validate() error {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	return nil
}
