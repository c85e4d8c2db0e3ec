package migrations

import "embed"

// FS contains embedded SQLite migrations for lobbysync storage.
//
//go:embed *.sql
var FS embed.FS
