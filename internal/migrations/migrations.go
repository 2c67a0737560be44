// Package migrations embeds the goose migration scripts for the local
// offline store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

// SchemaVersion gates destructive rebuilds: if the on-disk store reports a
// newer version than this binary understands, the store is wiped and
// rebuilt rather than migrated in place.
const SchemaVersion = 1
