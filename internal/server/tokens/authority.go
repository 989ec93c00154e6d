// Package tokens implements the token authority: issuing, validating and
// consuming the opaque single-purpose tokens that drive account activation
// and password reset.
package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/server/models"
	"github.com/zoneup/zoneup/internal/server/repositories/repomanager"
)

// tokenSize is the number of random bytes per token; the stored string is
// twice as long in hex.
const tokenSize = 32

// Authority issues and redeems action tokens. Methods take a dbx.DBTX so
// callers can scope them to an enclosing transaction together with the rest
// of a logical operation.
type Authority struct {
	rm repomanager.RepositoryManager
}

// NewAuthority constructs an Authority over the given repository manager.
func NewAuthority(rm repomanager.RepositoryManager) *Authority {
	return &Authority{rm: rm}
}

// Issue generates a fresh unguessable token of the given type for the user,
// replacing any outstanding token of the same (user, type) pair. At most one
// live token exists per purpose per owner.
func (a *Authority) Issue(ctx context.Context, db dbx.DBTX, userID string, actionType models.ActionType) (string, error) {
	token, err := common.MakeRandHexString(tokenSize)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	repo := a.rm.Actions(db)
	if err := repo.DeleteByUserAndType(ctx, userID, actionType); err != nil {
		return "", err
	}
	action := &models.Action{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   actionType,
		Token:  token,
	}
	if err := repo.Create(ctx, action); err != nil {
		return "", err
	}
	return token, nil
}

// Consume redeems a token exactly once: it looks the token up, checks the
// type, deletes the row and returns the owning user id. A missing token, a
// type mismatch and an already-consumed token are all common.ErrInvalidToken;
// the caller learns nothing about which case occurred.
func (a *Authority) Consume(ctx context.Context, db dbx.DBTX, token string, actionType models.ActionType) (string, error) {
	action, err := a.lookup(ctx, db, token, actionType)
	if err != nil {
		return "", err
	}
	if err := a.rm.Actions(db).DeleteByToken(ctx, action.Token); err != nil {
		return "", err
	}
	return action.UserID, nil
}

// Validate is the non-consuming variant of Consume: it checks the token and
// returns the owner without invalidating it.
func (a *Authority) Validate(ctx context.Context, db dbx.DBTX, token string, actionType models.ActionType) (string, error) {
	action, err := a.lookup(ctx, db, token, actionType)
	if err != nil {
		return "", err
	}
	return action.UserID, nil
}

func (a *Authority) lookup(ctx context.Context, db dbx.DBTX, token string, actionType models.ActionType) (*models.Action, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}
	action, err := a.rm.Actions(db).GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if action.Type != actionType {
		return nil, common.ErrInvalidToken
	}
	return action, nil
}
