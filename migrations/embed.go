// Package migrations embeds the PostgreSQL schema applied by infra.Migrate.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
