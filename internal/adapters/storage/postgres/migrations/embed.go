// Package migrations contiene el esquema SQL embebido del backend Postgres.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
