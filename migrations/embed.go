// Package migrations holds the SQL schema migrations, embedded so the binary
// can migrate its database without shipping files alongside it.
package migrations

import "embed"

// FS contains every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
