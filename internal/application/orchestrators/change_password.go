package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"studio/internal/domain/account"
)

// ChangePasswordInput carries input for the change-password orchestrator.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// AccountStoreForChangePassword defines the store interface needed by ChangePassword.
type AccountStoreForChangePassword interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// ChangePasswordDeps holds dependencies for ChangePassword.
type ChangePasswordDeps struct {
	AccountStore AccountStoreForChangePassword
	Sessions     SessionRevoker
}

var (
	ErrCurrentPasswordWrong = errors.New("la contraseña actual es incorrecta")
	ErrNewPasswordSame      = errors.New("la nueva contraseña debe ser distinta de la actual")
	ErrPasswordFieldsEmpty  = errors.New("completa todos los campos")
)

// ExecuteChangePassword checks the current password and replaces it. Every
// session of the account is revoked; the caller signs the user back in.
// PRE: AccountID names an existing principal
// POST: Password is updated, lockout counters and PasswordChangeRequired
// cleared, sessions revoked
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps ChangePasswordDeps) error {
	if input.AccountID == "" || input.CurrentPassword == "" || input.NewPassword == "" {
		return ErrPasswordFieldsEmpty
	}
	if input.NewPassword != input.ConfirmPassword {
		return ErrPasswordMismatch
	}

	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		return ErrCurrentPasswordWrong
	}
	if input.CurrentPassword == input.NewPassword {
		return ErrNewPasswordSame
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return err
	}
	acct.ResetFailedLogins()
	acct.PasswordChangeRequired = false

	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return err
	}
	if deps.Sessions != nil {
		if err := deps.Sessions.DeleteForAccount(ctx, acct.ID); err != nil {
			slog.Error("auth_event", "event", "session_revoke_failed", "account_id", acct.ID, "error", err)
		}
	}

	slog.Info("auth_event", "event", "password_changed", "account_id", acct.ID)
	return nil
}
