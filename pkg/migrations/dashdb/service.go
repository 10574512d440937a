// Package dashdb holds all the migrations for the dashboard database
package dashdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry all numbered migration files register into
var Migrations = migrate.NewMigrations()
