// Package identity maps identity-provider profiles onto marketplace users
// and talks to the Steam OpenID and Web API endpoints.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/access"
	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/repository"
)

// Profile is what the identity provider tells us about a user.
type Profile struct {
	ExternalID  string `json:"steamId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// UserStore is the subset of the user repository the resolver needs.
type UserStore interface {
	GetByExternalID(ctx context.Context, externalID string) (model.User, error)
	Create(ctx context.Context, u *model.User) error
	UpdateProfile(ctx context.Context, id uint64, displayName, avatarURL string) error
}

// Resolver finds or creates the internal user for an external profile.
type Resolver struct {
	users  UserStore
	policy access.Policy
	log    *zap.Logger
}

func NewResolver(users UserStore, policy access.Policy, log *zap.Logger) *Resolver {
	return &Resolver{users: users, policy: policy, log: log}
}

// Resolve returns the user whose external id matches p, creating it when
// absent.  Existing users get their display fields refreshed and keep
// balance, admin flag and id.  A concurrent first login that loses the
// insert race re-reads the winner's row.
func (r *Resolver) Resolve(ctx context.Context, p Profile) (model.User, error) {
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	if p.ExternalID == "" {
		return model.User{}, fmt.Errorf("%w: external id is required", domain.ErrInvalidInput)
	}

	u, err := r.users.GetByExternalID(ctx, p.ExternalID)
	switch {
	case err == nil:
		return r.refresh(ctx, u, p)
	case !errors.Is(err, domain.ErrNotFound):
		return model.User{}, err
	}

	u = model.User{
		ExternalID:  p.ExternalID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		IsAdmin:     r.policy.IsAdmin(p.ExternalID),
	}
	err = r.users.Create(ctx, &u)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, err := r.users.GetByExternalID(ctx, p.ExternalID)
		if err != nil {
			return model.User{}, err
		}
		return r.refresh(ctx, existing, p)
	}
	if err != nil {
		return model.User{}, err
	}
	r.log.Info("user created", zap.Uint64("user_id", u.ID), zap.Bool("is_admin", u.IsAdmin))

	// re-read for server defaults (balance, timestamps)
	return r.users.GetByExternalID(ctx, p.ExternalID)
}

func (r *Resolver) refresh(ctx context.Context, u model.User, p Profile) (model.User, error) {
	if u.DisplayName == p.DisplayName && u.AvatarURL == p.AvatarURL {
		return u, nil
	}
	if err := r.users.UpdateProfile(ctx, u.ID, p.DisplayName, p.AvatarURL); err != nil {
		return model.User{}, err
	}
	u.DisplayName = p.DisplayName
	u.AvatarURL = p.AvatarURL
	return u, nil
}
