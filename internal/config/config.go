package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/common"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds runtime settings for kmdb.
type Config struct {
	Namespace     string
	Backend       string
	DataDir       string
	SQLitePath    string
	PostgresDSN   string
	CorruptPolicy string
	IDStrategy    string
	MaxRetries    int
	Encrypt       bool
	WatchInterval time.Duration
	LogLevel      string

	BackupDir      string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
	S3Prefix       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Namespace = common.DefaultNamespace
	c.Backend = BackendFile
	c.DataDir = "data"
	c.SQLitePath = "kmdb.sqlite"
	c.CorruptPolicy = "fail"
	c.IDStrategy = "uuid"
	c.MaxRetries = 5
	c.WatchInterval = 100 * time.Millisecond
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("backend %q needs a DSN", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	switch c.CorruptPolicy {
	case "fail", "reset":
	default:
		return fmt.Errorf("unknown corrupt policy %q", c.CorruptPolicy)
	}
	switch c.IDStrategy {
	case "uuid", "legacy":
	default:
		return fmt.Errorf("unknown id strategy %q", c.IDStrategy)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
