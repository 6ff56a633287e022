package sqlite

import "embed"

// embedMigrations holds the versioned goose migrations applied on New().
//
//go:embed migrations/*.sql
var embedMigrations embed.FS
