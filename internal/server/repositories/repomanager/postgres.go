package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/server/migrations"
	"github.com/zoneup/zoneup/internal/server/repositories/actions"
	"github.com/zoneup/zoneup/internal/server/repositories/domains"
	"github.com/zoneup/zoneup/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed
// RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Domains returns a domains.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Domains(db dbx.DBTX) domains.Repository {
	return domains.NewPostgresRepository(db)
}

// Actions returns an actions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Actions(db dbx.DBTX) actions.Repository {
	return actions.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations points goose at the embedded migrations and applies them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
