package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/logging"
	"github.com/zoneup/zoneup/internal/netx"
	"github.com/zoneup/zoneup/internal/server/models"
	"github.com/zoneup/zoneup/internal/server/repositories/repomanager"
)

// updateTokenSize is the number of random bytes in a domain update token.
const updateTokenSize = 32

// DomainService handles domain acquisition, device updates and release.
// Callers pass an already-authenticated owner; credential checking lives in
// UserService.
type DomainService struct {
	db         *sql.DB
	rm         repomanager.RepositoryManager
	reconciler Reconciler
	log        logging.Logger
}

// NewDomainService constructs a DomainService.
func NewDomainService(db *sql.DB, rm repomanager.RepositoryManager, reconciler Reconciler, log logging.Logger) *DomainService {
	return &DomainService{
		db:         db,
		rm:         rm,
		reconciler: reconciler,
		log:        log.With("component", "domain-service"),
	}
}

// UpdateParams is the full desired state a device submits on update. The
// service set replaces the stored one wholesale. A missing IP falls back to
// the caller's network address.
type UpdateParams struct {
	IP              string
	LocalIP         string
	MapLocalAddress *bool
	PlatformVersion string
	Services        []models.Service
	RemoteAddr      string
}

// AcquireDomain claims a label for the owner's device, or rebinds it when
// the owner already holds it. The update token rotates on every successful
// acquisition, so any previously issued token for the label stops working.
// A label held by a different user fails with Conflict and leaves the
// existing binding untouched.
func (s *DomainService) AcquireDomain(ctx context.Context, owner *models.User, label, mac, deviceName, deviceTitle string) (*models.Domain, error) {
	if err := validateLabel(label); err != nil {
		return nil, err
	}
	if err := validateMacAddress(mac); err != nil {
		return nil, err
	}

	token, err := common.MakeRandHexString(updateTokenSize)
	if err != nil {
		return nil, fmt.Errorf("generating update token: %w", err)
	}

	var result *models.Domain
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Domains(tx)

		existing, err := repo.GetByLabel(ctx, label)
		if errors.Is(err, common.ErrNotFound) {
			domain := &models.Domain{
				ID:               uuid.NewString(),
				UserID:           owner.ID,
				UserDomain:       label,
				DeviceMacAddress: mac,
				DeviceName:       deviceName,
				DeviceTitle:      deviceTitle,
				UpdateToken:      token,
			}
			// The unique label constraint resolves racing acquisitions:
			// the loser gets a Conflict here.
			if _, err := repo.Create(ctx, domain); err != nil {
				if errors.Is(err, common.ErrConflict) {
					return fmt.Errorf("%w: domain already claimed", common.ErrConflict)
				}
				return err
			}
			result = domain
			return nil
		}
		if err != nil {
			return err
		}
		if existing.UserID != owner.ID {
			return fmt.Errorf("%w: domain already claimed", common.ErrConflict)
		}

		existing.DeviceMacAddress = mac
		existing.DeviceName = deviceName
		existing.DeviceTitle = deviceTitle
		existing.UpdateToken = token
		existing.LastUpdate = nextUpdateTime(existing.LastUpdate)
		if err := repo.Update(ctx, existing); err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "domain acquired", "label", label, "user_id", owner.ID)
	return result, nil
}

// UpdateDomain applies the device's declared state: it authenticates by
// update token, computes the DNS diff, pushes it to the provider and only
// then persists the new state. last_update advances strictly on every call,
// even when nothing else changed.
func (s *DomainService) UpdateDomain(ctx context.Context, updateToken string, p UpdateParams) (*models.Domain, error) {
	oldDomain, err := s.rm.Domains(s.db).GetByUpdateToken(ctx, updateToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid update token", common.ErrBadRequest)
		}
		return nil, err
	}

	newDomain, err := s.applyUpdate(oldDomain, p)
	if err != nil {
		return nil, err
	}

	// Provider first; the store is written only after DNS succeeded, so
	// stored state never runs ahead of the zone.
	if oldDomain.IP == "" {
		err = s.reconciler.Publish(ctx, newDomain)
	} else {
		err = s.reconciler.Reconcile(ctx, oldDomain, newDomain)
	}
	if err != nil {
		return nil, err
	}

	newDomain.LastUpdate = nextUpdateTime(oldDomain.LastUpdate)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Domains(tx)
		if err := repo.Update(ctx, newDomain); err != nil {
			return err
		}
		return repo.ReplaceServices(ctx, newDomain.ID, newDomain.Services)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "domain updated", "label", newDomain.UserDomain, "ip", newDomain.IP, "services", len(newDomain.Services))
	return newDomain, nil
}

// DropDevice releases the device binding but keeps the label reserved for
// the owner. All records are torn down and the update token is invalidated.
func (s *DomainService) DropDevice(ctx context.Context, owner *models.User, label string) error {
	domain, err := s.ownedDomain(ctx, owner, label)
	if err != nil {
		return err
	}
	if err := s.reconciler.Teardown(ctx, domain); err != nil {
		return err
	}

	domain.DeviceMacAddress = ""
	domain.DeviceName = ""
	domain.DeviceTitle = ""
	domain.IP = ""
	domain.LocalIP = ""
	domain.MapLocalAddress = false
	domain.PlatformVersion = ""
	domain.UpdateToken = ""
	domain.LastUpdate = nextUpdateTime(domain.LastUpdate)
	domain.Services = nil

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Domains(tx)
		if err := repo.Update(ctx, domain); err != nil {
			return err
		}
		return repo.ReplaceServices(ctx, domain.ID, nil)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "device dropped", "label", label)
	return nil
}

// DeleteDomain releases the label entirely: records torn down, row removed,
// update token gone with it.
func (s *DomainService) DeleteDomain(ctx context.Context, owner *models.User, label string) error {
	domain, err := s.ownedDomain(ctx, owner, label)
	if err != nil {
		return err
	}
	if err := s.reconciler.Teardown(ctx, domain); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.rm.Domains(tx).Delete(ctx, domain.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "domain deleted", "label", label)
	return nil
}

// ListDomains returns the owner's domains with their services.
func (s *DomainService) ListDomains(ctx context.Context, owner *models.User) ([]*models.Domain, error) {
	return s.rm.Domains(s.db).ListByUserID(ctx, owner.ID)
}

func (s *DomainService) ownedDomain(ctx context.Context, owner *models.User, label string) (*models.Domain, error) {
	domain, err := s.rm.Domains(s.db).GetByLabel(ctx, label)
	if err != nil {
		return nil, err
	}
	if domain.UserID != owner.ID {
		return nil, common.ErrForbidden
	}
	return domain, nil
}

// applyUpdate builds the new declared state from the old domain and the
// submitted parameters, validating everything that came from the wire.
func (s *DomainService) applyUpdate(oldDomain *models.Domain, p UpdateParams) (*models.Domain, error) {
	newDomain := *oldDomain

	ip := p.IP
	if ip == "" {
		ip = netx.RemoteIP(p.RemoteAddr)
	}
	if ip == "" {
		return nil, fmt.Errorf("%w: cannot determine device IP", common.ErrBadRequest)
	}
	if err := validateIP(ip); err != nil {
		return nil, err
	}
	newDomain.IP = ip

	if p.LocalIP != "" {
		if err := validateIP(p.LocalIP); err != nil {
			return nil, err
		}
		newDomain.LocalIP = p.LocalIP
	}
	if p.MapLocalAddress != nil {
		newDomain.MapLocalAddress = *p.MapLocalAddress
	}
	if newDomain.MapLocalAddress && newDomain.LocalIP == "" {
		return nil, fmt.Errorf("%w: map_local_address requires a local IP", common.ErrBadRequest)
	}
	if p.PlatformVersion != "" {
		newDomain.PlatformVersion = p.PlatformVersion
	}

	seen := make(map[models.ServiceKey]struct{}, len(p.Services))
	for _, svc := range p.Services {
		if svc.Name == "" {
			return nil, fmt.Errorf("%w: service name is required", common.ErrBadRequest)
		}
		if err := validateServiceType(svc.Type); err != nil {
			return nil, err
		}
		if svc.Port < 1 || svc.Port > 65535 {
			return nil, fmt.Errorf("%w: service port out of range", common.ErrBadRequest)
		}
		if _, dup := seen[svc.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate service %s/%s", common.ErrBadRequest, svc.Name, svc.Type)
		}
		seen[svc.Key()] = struct{}{}
	}
	newDomain.Services = p.Services

	return &newDomain, nil
}

// nextUpdateTime returns the current time, nudged forward if the clock has
// not advanced past the previous update, so last_update increases strictly.
func nextUpdateTime(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
