package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/krishimitra/internal/flagx"
	"github.com/dmitrijs2005/krishimitra/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from a zero value.
type JsonConfig struct {
	Namespace     string          `json:"namespace"`
	Backend       string          `json:"backend"`
	DataDir       string          `json:"data_dir"`
	SQLitePath    string          `json:"sqlite_path"`
	PostgresDSN   string          `json:"postgres_dsn"`
	CorruptPolicy string          `json:"corrupt_policy"`
	IDStrategy    string          `json:"id_strategy"`
	MaxRetries    *int            `json:"max_retries"`
	Encrypt       *bool           `json:"encrypt"`
	WatchInterval *timex.Duration `json:"watch_interval"`
	LogLevel      string          `json:"log_level"`
	BackupDir     string          `json:"backup_dir"`
	S3            JsonS3Config    `json:"s3"`
}

type JsonS3Config struct {
	Bucket       string `json:"bucket"`
	Region       string `json:"region"`
	BaseEndpoint string `json:"base_endpoint"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Prefix       string `json:"prefix"`
}

// parseJson overlays Config with values loaded from a JSON file located via
// flagx.JsonConfigFlags. Only keys present in the file change cfg. Panics
// on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.Namespace, jc.Namespace)
	setString(&cfg.Backend, jc.Backend)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.SQLitePath, jc.SQLitePath)
	setString(&cfg.PostgresDSN, jc.PostgresDSN)
	setString(&cfg.CorruptPolicy, jc.CorruptPolicy)
	setString(&cfg.IDStrategy, jc.IDStrategy)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.BackupDir, jc.BackupDir)
	setString(&cfg.S3Bucket, jc.S3.Bucket)
	setString(&cfg.S3Region, jc.S3.Region)
	setString(&cfg.S3BaseEndpoint, jc.S3.BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3.AccessKey)
	setString(&cfg.S3SecretKey, jc.S3.SecretKey)
	setString(&cfg.S3Prefix, jc.S3.Prefix)

	if jc.MaxRetries != nil {
		cfg.MaxRetries = *jc.MaxRetries
	}
	if jc.Encrypt != nil {
		cfg.Encrypt = *jc.Encrypt
	}
	if jc.WatchInterval != nil {
		cfg.WatchInterval = jc.WatchInterval.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
