// Package migrations embeds the PostgreSQL schema for postgreskv.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
