package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"studio/internal/domain/account"
	"studio/internal/domain/profile"
)

// AccountStoreForCreate defines the store interface needed by CreateStaffAccount.
type AccountStoreForCreate interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, a account.Account) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ProfileStoreForCreate defines the profile store interface needed by CreateStaffAccount.
type ProfileStoreForCreate interface {
	Save(ctx context.Context, p profile.Profile) error
}

// CreateStaffAccountInput carries input for the orchestrator.
type CreateStaffAccountInput struct {
	Email     string
	Password  string
	GivenName string
	Role      string
	// MustChangePassword makes the owner replace Password on first sign-in.
	MustChangePassword bool
}

// CreateAccountDeps holds dependencies for CreateStaffAccount.
type CreateAccountDeps struct {
	AccountStore AccountStoreForCreate
	ProfileStore ProfileStoreForCreate
	Tokens       TokenDeps
}

var ErrStaffRole = errors.New("staff accounts must be admin, coach or staff")

// ExecuteCreateStaffAccount creates a verified, active principal with a
// non-client role. Staff do not go through the registration wizard.
// PRE: Valid email, password >= 8 chars, role in {admin, coach, staff}
// POST: Account (verified) and profile created with the same id, or
// neither when the profile cannot be saved
// INVARIANT: Email must be unique
func ExecuteCreateStaffAccount(ctx context.Context, input CreateStaffAccountInput, deps CreateAccountDeps) (string, error) {
	if input.Role == profile.RoleClient || !profile.IsValidRole(input.Role) {
		return "", ErrStaffRole
	}
	now := clock(deps.Tokens.Now)
	acct := account.Account{
		ID:        newID(deps.Tokens.GenerateID),
		Email:     account.NormalizeEmail(input.Email),
		CreatedAt: now,

		PasswordChangeRequired: input.MustChangePassword,
	}
	if err := acct.Validate(); err != nil {
		return "", err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return "", err
	}
	_ = acct.MarkVerified(now)

	exists, err := deps.AccountStore.ExistsByEmail(ctx, acct.Email)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrEmailTaken
	}

	name := strings.TrimSpace(input.GivenName)
	if name == "" {
		name = strings.ToUpper(input.Role[:1]) + input.Role[1:]
	}
	p := profile.Profile{
		ID:                 acct.ID,
		Email:              acct.Email,
		GivenName:          name,
		Role:               input.Role,
		Active:             true,
		OnboardingComplete: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return "", err
	}
	if err := deps.ProfileStore.Save(ctx, p); err != nil {
		// An account without a profile would hold the email and be signed
		// out by the gate on every login.
		if derr := deps.AccountStore.Delete(context.WithoutCancel(ctx), acct.ID); derr != nil {
			slog.Error("auth_event", "event", "account_cleanup_failed", "account_id", acct.ID, "error", derr)
		}
		return "", err
	}

	slog.Info("auth_event", "event", "account_created", "account_id", acct.ID, "email", acct.Email, "role", input.Role)
	return acct.ID, nil
}

// ExecuteSeedAdmin creates the first admin when the database has no accounts.
// The seeded password is configuration, so the admin must replace it.
// PRE: Database is migrated
// POST: Admin account created if count == 0, flagged PasswordChangeRequired
func ExecuteSeedAdmin(ctx context.Context, deps CreateAccountDeps, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	count, err := deps.AccountStore.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil // Accounts already exist, skip seeding
	}

	if _, err := ExecuteCreateStaffAccount(ctx, CreateStaffAccountInput{
		Email:     email,
		Password:  password,
		GivenName: "Administrador",
		Role:      profile.RoleAdmin,

		MustChangePassword: true,
	}, deps); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "admin_seeded", "email", email)
	return nil
}
