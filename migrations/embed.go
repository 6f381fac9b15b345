// Package migrations embeds the Postgres schema used by the event outbox and
// webhook dedupe.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
