// Package migrations embeds the SQLite schema for variable storage.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
