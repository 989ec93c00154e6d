// Package domains provides persistence for claimed domains and their
// advertised services.
package domains

import (
	"context"

	"github.com/zoneup/zoneup/internal/server/models"
)

// Repository is the storage contract for domains. Create relies on the
// unique user_domain constraint: two racing acquisitions of the same free
// label resolve to one winner and one common.ErrConflict, with no
// check-then-insert window. Get* methods load the domain together with its
// service set.
type Repository interface {
	Create(ctx context.Context, domain *models.Domain) (*models.Domain, error)
	GetByLabel(ctx context.Context, label string) (*models.Domain, error)
	GetByUpdateToken(ctx context.Context, token string) (*models.Domain, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Domain, error)
	Update(ctx context.Context, domain *models.Domain) error
	ReplaceServices(ctx context.Context, domainID string, services []models.Service) error
	Delete(ctx context.Context, id string) error
}
