// Package users provides persistence for user accounts.
package users

import (
	"context"

	"github.com/zoneup/zoneup/internal/server/models"
)

// Repository is the storage contract for users. Create relies on the unique
// email constraint and returns common.ErrConflict when the address is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	Delete(ctx context.Context, id string) error
}
