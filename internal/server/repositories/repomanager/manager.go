// Package repomanager defines the factory that vends repositories bound to
// a concrete database handle, so services can run the same repository either
// directly on the pool or inside a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/server/repositories/actions"
	"github.com/zoneup/zoneup/internal/server/repositories/domains"
	"github.com/zoneup/zoneup/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to the provided DBTX and runs
// schema migrations.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Domains(db dbx.DBTX) domains.Repository
	Actions(db dbx.DBTX) actions.Repository
}
