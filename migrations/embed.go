// Package migrations contiene el esquema SQL versionado para golang-migrate.
package migrations

import "embed"

// FS migraciones embebidas en el binario.
//
//go:embed *.sql
var FS embed.FS
