// Package migrations embeds the numbered SQL schema migrations applied by
// `medbook-server migrate up`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
