// Package actions provides persistence for single-purpose opaque tokens
// (activation, password reset).
package actions

import (
	"context"

	"github.com/zoneup/zoneup/internal/server/models"
)

// Repository is the storage contract for action tokens. The table enforces
// at most one live token per (user, type) pair and token uniqueness.
type Repository interface {
	Create(ctx context.Context, action *models.Action) error
	GetByToken(ctx context.Context, token string) (*models.Action, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUserAndType(ctx context.Context, userID string, actionType models.ActionType) error
}
