// Package access decides who is an administrator.  The static allow-list
// only seeds the persisted is_admin flag when a user is first created;
// every runtime check reads the flag from the user row.
package access

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/queue"
)

// Policy is an immutable set of external ids granted admin at creation.
// The zero value and an empty list deny everyone.
type Policy struct {
	admins map[string]struct{}
}

// NewPolicy builds a Policy; blank ids are ignored.
func NewPolicy(ids ...string) Policy {
	p := Policy{admins: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			p.admins[id] = struct{}{}
		}
	}
	return p
}

// IsAdmin reports whether externalID is on the allow-list.
func (p Policy) IsAdmin(externalID string) bool {
	if externalID == "" {
		return false
	}
	_, ok := p.admins[externalID]
	return ok
}

// UserGetter loads a user by internal id.
type UserGetter interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// UserStore is the subset of the user repository the role service needs.
type UserStore interface {
	UserGetter
	GetByExternalID(ctx context.Context, externalID string) (model.User, error)
	SetAdmin(ctx context.Context, externalID string, isAdmin bool) error
}

// Roles changes persisted admin flags.
type Roles struct {
	users UserStore
	pub   queue.Publisher
	log   *zap.Logger
}

func NewRoles(users UserStore, pub queue.Publisher, log *zap.Logger) *Roles {
	return &Roles{users: users, pub: pub, log: log}
}

// RequireAdmin loads the actor and fails with ErrForbidden unless the
// persisted flag is set.
func RequireAdmin(ctx context.Context, users UserGetter, actorID uint64) (model.User, error) {
	u, err := users.GetByID(ctx, actorID)
	if err != nil {
		return model.User{}, err
	}
	if !u.IsAdmin {
		return model.User{}, fmt.Errorf("%w: administrator access required", domain.ErrForbidden)
	}
	return u, nil
}

// SetAdmin grants or revokes admin for the target user and emits a
// user.role_changed event.  Admins cannot revoke themselves.
func (r *Roles) SetAdmin(ctx context.Context, actorID uint64, targetExternalID string, isAdmin bool) (model.User, error) {
	targetExternalID = strings.TrimSpace(targetExternalID)
	if targetExternalID == "" {
		return model.User{}, fmt.Errorf("%w: external id is required", domain.ErrInvalidInput)
	}
	actor, err := RequireAdmin(ctx, r.users, actorID)
	if err != nil {
		return model.User{}, err
	}
	if actor.ExternalID == targetExternalID && !isAdmin {
		return model.User{}, fmt.Errorf("%w: cannot revoke your own admin role", domain.ErrConflict)
	}
	if err := r.users.SetAdmin(ctx, targetExternalID, isAdmin); err != nil {
		return model.User{}, err
	}
	target, err := r.users.GetByExternalID(ctx, targetExternalID)
	if err != nil {
		return model.User{}, err
	}

	ev, err := queue.NewEvent(queue.EventUserRoleChanged, queue.UserRoleChanged{
		TargetExternalID: targetExternalID,
		IsAdmin:          isAdmin,
		ActorUserID:      actorID,
	})
	if err == nil {
		err = r.pub.Publish(ctx, ev)
	}
	if err != nil {
		r.log.Warn("role change event not published", zap.Error(err), zap.String("target", targetExternalID))
	}
	r.log.Info("admin role changed",
		zap.Uint64("actor_id", actorID),
		zap.String("target", targetExternalID),
		zap.Bool("is_admin", isAdmin))
	return target, nil
}
