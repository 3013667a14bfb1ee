// Package migrations хранит SQL-схему сервиса; файлы идемпотентны (IF NOT EXISTS).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
