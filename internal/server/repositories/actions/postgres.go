package actions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new action token. A still-live token for the same
// (user, type) pair surfaces as common.ErrConflict; callers replace tokens
// via DeleteByUserAndType first, inside one transaction.
func (r *PostgresRepository) Create(ctx context.Context, action *models.Action) error {
	query := `
		INSERT INTO actions (id, user_id, type, token)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		action.ID, action.UserID, action.Type, action.Token).Scan(&action.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByToken returns the action row for the token string, or
// common.ErrNotFound.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.Action, error) {
	query := `
		SELECT id, user_id, type, token, created_at FROM actions
		WHERE token = $1
	`
	action := &models.Action{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&action.ID, &action.UserID, &action.Type, &action.Token, &action.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return action, nil
}

// DeleteByToken removes the action with the given token string.
func (r *PostgresRepository) DeleteByToken(ctx context.Context, token string) error {
	query := `
		DELETE FROM actions
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteByUserAndType removes any outstanding token of the given type for
// the user. Deleting zero rows is not an error.
func (r *PostgresRepository) DeleteByUserAndType(ctx context.Context, userID string, actionType models.ActionType) error {
	query := `
		DELETE FROM actions
		WHERE user_id = $1 AND type = $2
	`
	if _, err := r.db.ExecContext(ctx, query, userID, actionType); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
