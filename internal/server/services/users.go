// Package services contains the server-side business logic: account
// lifecycle in UserService and domain acquisition/update in DomainService.
// DNS-affecting mutations are delegated to the Reconciler, and store writes
// happen only after the provider call succeeded.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/logging"
	"github.com/zoneup/zoneup/internal/server/config"
	"github.com/zoneup/zoneup/internal/server/mail"
	"github.com/zoneup/zoneup/internal/server/models"
	"github.com/zoneup/zoneup/internal/server/repositories/repomanager"
	"github.com/zoneup/zoneup/internal/server/tokens"
)

// Reconciler is the DNS capability the services depend on. The concrete
// implementation lives in the dns package; tests inject a fake.
type Reconciler interface {
	Publish(ctx context.Context, d *models.Domain) error
	Reconcile(ctx context.Context, oldDomain, newDomain *models.Domain) error
	Teardown(ctx context.Context, d *models.Domain) error
}

// dummyHash is compared against when a login targets an unknown email, so
// the request costs one bcrypt verification either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)

// UserService handles registration, activation, authentication, password
// lifecycle and account deletion.
type UserService struct {
	db         *sql.DB
	rm         repomanager.RepositoryManager
	tokens     *tokens.Authority
	mailer     mail.Sender
	reconciler Reconciler
	cfg        *config.Config
	log        logging.Logger
}

// NewUserService constructs a UserService with its collaborators.
func NewUserService(db *sql.DB, rm repomanager.RepositoryManager, authority *tokens.Authority,
	mailer mail.Sender, reconciler Reconciler, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:         db,
		rm:         rm,
		tokens:     authority,
		mailer:     mailer,
		reconciler: reconciler,
		cfg:        cfg,
		log:        log.With("component", "user-service"),
	}
}

// CreateUser registers a new account and optionally reserves an initial
// domain label in the same transaction. With email activation enabled the
// account starts inactive and an activation token is mailed out; otherwise
// it is active immediately and no mail is sent.
func (s *UserService) CreateUser(ctx context.Context, email, password, domainLabel string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if domainLabel != "" {
		if err := validateLabel(domainLabel); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Active:       !s.cfg.RequireEmailActivation,
	}

	var activationToken string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.rm.Users(tx).Create(ctx, user); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return fmt.Errorf("%w: email already registered", common.ErrConflict)
			}
			return err
		}
		if domainLabel != "" {
			domain := &models.Domain{
				ID:         uuid.NewString(),
				UserID:     user.ID,
				UserDomain: domainLabel,
			}
			if _, err := s.rm.Domains(tx).Create(ctx, domain); err != nil {
				if errors.Is(err, common.ErrConflict) {
					return fmt.Errorf("%w: domain already claimed", common.ErrConflict)
				}
				return err
			}
		}
		if s.cfg.RequireEmailActivation {
			var err error
			activationToken, err = s.tokens.Issue(ctx, tx, user.ID, models.ActionActivate)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cfg.RequireEmailActivation {
		activationURL := fmt.Sprintf("%s/activate?token=%s", s.cfg.BaseURL, activationToken)
		if err := s.mailer.SendActivation(ctx, email, domainLabel, activationURL); err != nil {
			s.log.Error(ctx, "sending activation mail failed", "email", email, "error", err)
		}
	}

	s.log.Info(ctx, "user created", "user_id", user.ID, "active", user.Active)
	return user, nil
}

// Activate consumes an activation token and flips the owner to active.
// An invalid or already-used token is a BadRequest; activating an already
// active account is a Conflict.
func (s *UserService) Activate(ctx context.Context, token string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userID, err := s.tokens.Consume(ctx, tx, token, models.ActionActivate)
		if err != nil {
			if errors.Is(err, common.ErrInvalidToken) {
				return fmt.Errorf("%w: invalid activation token", common.ErrBadRequest)
			}
			return err
		}
		user, err := s.rm.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Active {
			return fmt.Errorf("%w: account already active", common.ErrConflict)
		}
		return s.rm.Users(tx).SetActive(ctx, userID, true)
	})
}

// Authenticate verifies the credentials and returns the user. Unknown
// email, inactive account and wrong password are indistinguishable to the
// caller: all are Forbidden.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)

	user, err := s.rm.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, common.ErrForbidden
		}
		return nil, common.ErrInternal
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrForbidden
	}
	if !user.Active {
		return nil, common.ErrForbidden
	}
	return user, nil
}

// GetByID loads one user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.rm.Users(s.db).GetByID(ctx, id)
}

// RequestPasswordReset issues a reset token and mails the reset link. An
// unknown address is silently ignored so the endpoint cannot be used to
// enumerate accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.rm.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Info(ctx, "password reset requested for unknown email", "email", email)
			return nil
		}
		return err
	}

	var resetToken string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		resetToken, err = s.tokens.Issue(ctx, tx, user.ID, models.ActionResetPassword)
		return err
	})
	if err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset?token=%s", s.cfg.BaseURL, resetToken)
	if err := s.mailer.SendPasswordReset(ctx, email, resetURL); err != nil {
		s.log.Error(ctx, "sending reset mail failed", "email", email, "error", err)
	}
	return nil
}

// ValidateResetToken reports whether a reset token is still redeemable
// without consuming it, so a client can reject a dead link before prompting
// for a new password. A stale token is Forbidden, same as SetPassword.
func (s *UserService) ValidateResetToken(ctx context.Context, token string) error {
	if _, err := s.tokens.Validate(ctx, s.db, token, models.ActionResetPassword); err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			return fmt.Errorf("%w: invalid reset token", common.ErrForbidden)
		}
		return err
	}
	return nil
}

// SetPassword consumes a reset token, stores the new password hash and
// notifies the owner.
func (s *UserService) SetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	var userID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		userID, err = s.tokens.Consume(ctx, tx, token, models.ActionResetPassword)
		if err != nil {
			if errors.Is(err, common.ErrInvalidToken) {
				return fmt.Errorf("%w: invalid reset token", common.ErrForbidden)
			}
			return err
		}
		return s.rm.Users(tx).UpdatePassword(ctx, userID, string(hash))
	})
	if err != nil {
		return err
	}

	if user, err := s.rm.Users(s.db).GetByID(ctx, userID); err == nil {
		if err := s.mailer.SendPasswordChanged(ctx, user.Email); err != nil {
			s.log.Error(ctx, "sending password changed mail failed", "error", err)
		}
	}
	return nil
}

// DeleteUser authenticates and removes the account. Every owned domain is
// torn down at the DNS provider first; if any teardown fails the account
// and all its domains stay untouched. The row deletion cascades to domains,
// services and actions in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, email, password string) error {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}

	owned, err := s.rm.Domains(s.db).ListByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, domain := range owned {
		if err := s.reconciler.Teardown(ctx, domain); err != nil {
			return err
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.rm.Users(tx).Delete(ctx, user.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "user deleted", "user_id", user.ID, "domains", len(owned))
	return nil
}
