// Package migrations embeds the schema of the on-disk table store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
