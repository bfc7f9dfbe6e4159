// Package db embeds the SQL schema migrations shipped with the gateway.
package db

import "embed"

// MigrationsFS holds the migration files applied by the gateway at startup
// and by its migrate subcommand.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
