// Package config loads runtime configuration for the kmdb tool.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c / -config, or $KMDB_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-n string   namespace key (default "krishimitra_db")
//	-b string   backend: memory, file, sqlite or postgres
//	-d string   data directory for the file backend
//	-s string   SQLite database path
//	-p string   PostgreSQL DSN
//	-e          encrypt stored values with a passphrase
//	-r int      retries after a concurrent-write conflict
//	-w int      debounce for external change notifications (milliseconds)
//	-l string   log level: debug, info, warn, error
//	-corrupt    corrupt-data policy: fail or reset
//	-id         id strategy: uuid or legacy
//	-backup     backup directory
//	-s3-bucket, -s3-region, -s3-endpoint, -s3-prefix
//
// # JSON schema
//
// Intervals use timex.Duration, so they can be strings like "250ms" or
// integer nanoseconds. S3 credentials can only be given in JSON:
//
//	{
//	  "namespace": "krishimitra_db",
//	  "backend": "sqlite",
//	  "sqlite_path": "kmdb.sqlite",
//	  "watch_interval": "250ms",
//	  "s3": {"bucket": "kmdb", "access_key": "minio", "secret_key": "..."}
//	}
package config
