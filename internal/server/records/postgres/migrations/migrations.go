// Package migrations embeds the SQL migrations of the default record tables.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
