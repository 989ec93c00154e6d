package domains

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/server/models"
)

const domainColumns = `id, user_id, user_domain, device_mac_address, device_name, device_title,
		ip, local_ip, map_local_address, platform_version, update_token, last_update`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new domain. A duplicate label surfaces as
// common.ErrConflict; this is the atomic insert-if-absent primitive the
// acquisition flow depends on.
func (r *PostgresRepository) Create(ctx context.Context, domain *models.Domain) (*models.Domain, error) {
	query := `
		INSERT INTO domains (id, user_id, user_domain, device_mac_address, device_name, device_title,
			ip, local_ip, map_local_address, platform_version, update_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING last_update
	`
	err := r.db.QueryRowContext(ctx, query,
		domain.ID, domain.UserID, domain.UserDomain,
		domain.DeviceMacAddress, domain.DeviceName, domain.DeviceTitle,
		domain.IP, domain.LocalIP, domain.MapLocalAddress,
		domain.PlatformVersion, domain.UpdateToken).Scan(&domain.LastUpdate)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return domain, nil
}

// GetByLabel returns the domain claimed under label, with its services,
// or common.ErrNotFound.
func (r *PostgresRepository) GetByLabel(ctx context.Context, label string) (*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE user_domain = $1`
	return r.getOne(ctx, query, label)
}

// GetByUpdateToken returns the domain bound to the given update token, with
// its services, or common.ErrNotFound. An empty token never matches.
func (r *PostgresRepository) GetByUpdateToken(ctx context.Context, token string) (*models.Domain, error) {
	if token == "" {
		return nil, common.ErrNotFound
	}
	query := `SELECT ` + domainColumns + ` FROM domains WHERE update_token = $1`
	return r.getOne(ctx, query, token)
}

// ListByUserID returns every domain owned by the user, with services.
func (r *PostgresRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE user_id = $1 ORDER BY user_domain`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Domain
	for rows.Next() {
		domain, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, domain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	for _, domain := range result {
		if domain.Services, err = r.loadServices(ctx, domain.ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Update persists mutable domain fields, including the update token and the
// last_update timestamp. The label itself is immutable and never written.
func (r *PostgresRepository) Update(ctx context.Context, domain *models.Domain) error {
	query := `
		UPDATE domains SET device_mac_address = $2, device_name = $3, device_title = $4,
			ip = $5, local_ip = $6, map_local_address = $7, platform_version = $8,
			update_token = $9, last_update = $10
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		domain.ID, domain.DeviceMacAddress, domain.DeviceName, domain.DeviceTitle,
		domain.IP, domain.LocalIP, domain.MapLocalAddress, domain.PlatformVersion,
		domain.UpdateToken, domain.LastUpdate)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ReplaceServices swaps the domain's service set wholesale.
func (r *PostgresRepository) ReplaceServices(ctx context.Context, domainID string, services []models.Service) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE domain_id = $1`, domainID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	query := `
		INSERT INTO services (domain_id, name, protocol, type, port, local_port, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, svc := range services {
		_, err := r.db.ExecContext(ctx, query,
			domainID, svc.Name, svc.Protocol, svc.Type, svc.Port, svc.LocalPort, svc.URL)
		if err != nil {
			if dbx.IsUniqueViolation(err) {
				return common.ErrConflict
			}
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// Delete removes the domain row; its services cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Domain, error) {
	domain, err := scanDomain(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if domain.Services, err = r.loadServices(ctx, domain.ID); err != nil {
		return nil, err
	}
	return domain, nil
}

func (r *PostgresRepository) loadServices(ctx context.Context, domainID string) ([]models.Service, error) {
	query := `
		SELECT name, protocol, type, port, local_port, url FROM services
		WHERE domain_id = $1
		ORDER BY name, type
	`
	rows, err := r.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.Name, &svc.Protocol, &svc.Type, &svc.Port, &svc.LocalPort, &svc.URL); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return services, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (*models.Domain, error) {
	domain := &models.Domain{}
	err := row.Scan(&domain.ID, &domain.UserID, &domain.UserDomain,
		&domain.DeviceMacAddress, &domain.DeviceName, &domain.DeviceTitle,
		&domain.IP, &domain.LocalIP, &domain.MapLocalAddress,
		&domain.PlatformVersion, &domain.UpdateToken, &domain.LastUpdate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return domain, nil
}
