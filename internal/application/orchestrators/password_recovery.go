package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"studio/internal/domain/account"
)

// SessionRevoker ends every session of an account.
type SessionRevoker interface {
	DeleteForAccount(ctx context.Context, accountID string) error
}

// ResetPasswordInput carries input for ResetPassword.
type ResetPasswordInput struct {
	Token           string
	Password        string
	ConfirmPassword string
}

// ResetPasswordDeps holds dependencies for ResetPassword.
type ResetPasswordDeps struct {
	VerificationDeps
	Sessions SessionRevoker
}

var ErrPasswordMismatch = errors.New("las contraseñas no coinciden")

// ExecuteRequestPasswordReset mails a recovery link. It reports success for
// unknown addresses.
func ExecuteRequestPasswordReset(ctx context.Context, email string, deps VerificationDeps) error {
	return ExecuteResendVerification(ctx, ResendVerificationInput{Type: account.PurposeRecovery, Email: email}, deps)
}

// ExecuteCheckResetToken reports whether secret can still reset a password.
func ExecuteCheckResetToken(ctx context.Context, secret string, deps VerificationDeps) error {
	if secret == "" {
		return account.ErrTokenInvalid
	}
	tok, err := deps.AccountStore.GetToken(ctx, secret)
	if err != nil {
		return account.ErrTokenInvalid
	}
	return tok.Redeemable(account.PurposeRecovery, clock(deps.Tokens.Now))
}

// ExecuteResetPassword redeems a recovery token and sets a new password.
// Following the link proves control of the mailbox, so an unverified
// account becomes verified.
// PRE: Token came from a recovery link
// POST: password replaced, lockout cleared, token used, sessions revoked
func ExecuteResetPassword(ctx context.Context, input ResetPasswordInput, deps ResetPasswordDeps) error {
	if input.Password != input.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := ExecuteCheckResetToken(ctx, input.Token, deps.VerificationDeps); err != nil {
		return err
	}
	now := clock(deps.Tokens.Now)

	tok, err := deps.AccountStore.GetToken(ctx, input.Token)
	if err != nil {
		return account.ErrTokenInvalid
	}
	acct, err := deps.AccountStore.GetByID(ctx, tok.AccountID)
	if err != nil {
		return err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return err
	}
	acct.ResetFailedLogins()
	_ = acct.MarkVerified(now)
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return err
	}

	tok.Invalidate()
	if err := deps.AccountStore.SaveToken(ctx, tok); err != nil {
		return err
	}
	if deps.Sessions != nil {
		if err := deps.Sessions.DeleteForAccount(ctx, acct.ID); err != nil {
			slog.Error("auth_event", "event", "session_revoke_failed", "account_id", acct.ID, "error", err)
		}
	}

	slog.Info("auth_event", "event", "password_reset", "account_id", acct.ID)
	return nil
}
