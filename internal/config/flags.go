package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/flagx"
)

var (
	valueFlags = []string{
		"-n", "-b", "-d", "-s", "-p", "-r", "-w", "-l",
		"-corrupt", "-id", "-backup",
		"-s3-bucket", "-s3-region", "-s3-endpoint", "-s3-prefix",
	}
	boolFlags = []string{"-e"}
)

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered with flagx.FilterArgsWithBools so that -c/-config and anything
// else unknown is left for other parsers.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgsWithBools(os.Args[1:], valueFlags, boolFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.Namespace, "n", cfg.Namespace, "namespace key")
	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "storage backend (memory, file, sqlite, postgres)")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory for the file backend")
	fs.StringVar(&cfg.SQLitePath, "s", cfg.SQLitePath, "SQLite database path")
	fs.StringVar(&cfg.PostgresDSN, "p", cfg.PostgresDSN, "PostgreSQL DSN")
	fs.BoolVar(&cfg.Encrypt, "e", cfg.Encrypt, "encrypt stored values")
	fs.IntVar(&cfg.MaxRetries, "r", cfg.MaxRetries, "retries after a concurrent-write conflict")
	watch := fs.Int("w", int(cfg.WatchInterval.Milliseconds()), "change notification debounce (in milliseconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.CorruptPolicy, "corrupt", cfg.CorruptPolicy, "corrupt data policy (fail, reset)")
	fs.StringVar(&cfg.IDStrategy, "id", cfg.IDStrategy, "id strategy (uuid, legacy)")
	fs.StringVar(&cfg.BackupDir, "backup", cfg.BackupDir, "backup directory")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 backup bucket")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3-endpoint", cfg.S3BaseEndpoint, "S3 endpoint (for MinIO and friends)")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "S3 key prefix")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.WatchInterval = time.Duration(*watch) * time.Millisecond
}
