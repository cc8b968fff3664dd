// Package migrations 内嵌的 PostgreSQL schema 迁移
package migrations

import "embed"

// FS golang-migrate iofs 源
//
//go:embed *.sql
var FS embed.FS
