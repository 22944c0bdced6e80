// Package migrations встраивает SQL-миграции схемы архива.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
