package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Storage providers.
const (
	ProviderLocal = "local"
	ProviderAzure = "azure"
	ProviderS3    = "s3"
)

// Config holds blob storage parameters for every provider.
// Only the section named by Provider is validated.
type Config struct {
	Provider    string      `toml:"provider"`
	MaxListSize int32       `toml:"max_list_size"`
	Local       LocalConfig `toml:"local"`
	Azure       AzureConfig `toml:"azure"`
	S3          S3Config    `toml:"s3"`
}

// LocalConfig roots blobs in a filesystem directory.
type LocalConfig struct {
	Root string `toml:"root"`
}

// AzureConfig holds Azure Blob Storage connection parameters. When ConnectionString
// is empty, AccountURL is used with the default Azure credential chain.
type AzureConfig struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	MaxListSize      string
	LocalRoot        string
	ContainerName    string
	ConnectionString string
	AccountURL       string
	S3Endpoint       string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3Region         string
	S3UseSSL         string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.MaxListSize != 0 {
		c.MaxListSize = overlay.MaxListSize
	}
	if overlay.Local.Root != "" {
		c.Local.Root = overlay.Local.Root
	}
	if overlay.Azure.ContainerName != "" {
		c.Azure.ContainerName = overlay.Azure.ContainerName
	}
	if overlay.Azure.ConnectionString != "" {
		c.Azure.ConnectionString = overlay.Azure.ConnectionString
	}
	if overlay.Azure.AccountURL != "" {
		c.Azure.AccountURL = overlay.Azure.AccountURL
	}
	if overlay.S3.Endpoint != "" {
		c.S3.Endpoint = overlay.S3.Endpoint
	}
	if overlay.S3.Bucket != "" {
		c.S3.Bucket = overlay.S3.Bucket
	}
	if overlay.S3.AccessKey != "" {
		c.S3.AccessKey = overlay.S3.AccessKey
	}
	if overlay.S3.SecretKey != "" {
		c.S3.SecretKey = overlay.S3.SecretKey
	}
	if overlay.S3.Region != "" {
		c.S3.Region = overlay.S3.Region
	}
	if overlay.S3.UseSSL {
		c.S3.UseSSL = true
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.Local.Root == "" {
		c.Local.Root = "data"
	}
	if c.Azure.ContainerName == "" {
		c.Azure.ContainerName = "panscan"
	}
	if c.S3.Bucket == "" {
		c.S3.Bucket = "panscan"
	}
	if c.MaxListSize == 0 {
		c.MaxListSize = 50
	}
	if c.MaxListSize > MaxListCap {
		c.MaxListSize = MaxListCap
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.Provider, &c.Provider)
	set(env.LocalRoot, &c.Local.Root)
	set(env.ContainerName, &c.Azure.ContainerName)
	set(env.ConnectionString, &c.Azure.ConnectionString)
	set(env.AccountURL, &c.Azure.AccountURL)
	set(env.S3Endpoint, &c.S3.Endpoint)
	set(env.S3Bucket, &c.S3.Bucket)
	set(env.S3AccessKey, &c.S3.AccessKey)
	set(env.S3SecretKey, &c.S3.SecretKey)
	set(env.S3Region, &c.S3.Region)

	if env.S3UseSSL != "" {
		if v := os.Getenv(env.S3UseSSL); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.S3.UseSSL = b
			}
		}
	}
	if env.MaxListSize != "" {
		if v := os.Getenv(env.MaxListSize); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MaxListSize = min(int32(n), MaxListCap)
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.Local.Root == "" {
			return fmt.Errorf("local.root required")
		}
	case ProviderAzure:
		if c.Azure.ContainerName == "" {
			return fmt.Errorf("azure.container_name required")
		}
		if c.Azure.ConnectionString == "" && c.Azure.AccountURL == "" {
			return fmt.Errorf("azure.connection_string or azure.account_url required")
		}
	case ProviderS3:
		if c.S3.Endpoint == "" {
			return fmt.Errorf("s3.endpoint required")
		}
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket required")
		}
	default:
		return fmt.Errorf("invalid provider: %q", c.Provider)
	}
	return nil
}
