// Package db carries the embedded schema migrations for the durable session
// store.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
