// Package migrations embeds the cart slot schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
