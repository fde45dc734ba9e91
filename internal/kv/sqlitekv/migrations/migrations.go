// Package migrations embeds the SQLite schema for sqlitekv.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
