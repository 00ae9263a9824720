package orchestrators

import (
	"context"
	"errors"

	"studio/internal/domain/access"
	"studio/internal/domain/account"
	"studio/internal/domain/profile"
	"studio/internal/domain/store"
)

// AccountLookup reads a principal by id.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// ProfileLookup reads a profile by principal id.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (profile.Profile, error)
}

// ResolveIdentityDeps holds dependencies for ResolveIdentity.
type ResolveIdentityDeps struct {
	AccountStore AccountLookup
	ProfileStore ProfileLookup
}

// ExecuteResolveIdentity builds the gate's view of a signed-in principal.
// A principal whose account row is gone resolves to nil (anonymous); a
// missing profile yields HasProfile=false. Any other store failure is
// returned so the gate can fail closed.
func ExecuteResolveIdentity(ctx context.Context, accountID string, deps ResolveIdentityDeps) (*access.Identity, error) {
	acct, err := deps.AccountStore.GetByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id := &access.Identity{
		PrincipalID:   acct.ID,
		Email:         acct.Email,
		EmailVerified: acct.EmailVerified,

		PasswordChangeRequired: acct.PasswordChangeRequired,
	}

	p, err := deps.ProfileStore.GetByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return id, nil
	}
	if err != nil {
		return nil, err
	}
	id.HasProfile = true
	id.Role = p.Role
	id.Active = p.Active
	return id, nil
}
