// Package migrations embeds the PostgreSQL schema so the server and tests
// can apply it from any working directory.
package migrations

import "embed"

// FS holds every *.up.sql file of this directory.
//
//go:embed *.up.sql
var FS embed.FS
