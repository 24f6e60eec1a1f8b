// Package migrations holds the SQL schema applied by cmd/migrate and by
// repository tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
