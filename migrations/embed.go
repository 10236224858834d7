// Package migrations holds the credential schema and applies it.
package migrations

import "embed"

// FS holds the numbered *.up.sql / *.down.sql pairs.
//
//go:embed *.sql
var FS embed.FS
