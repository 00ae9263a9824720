package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studio/internal/domain/account"
)

// ResendCooldown is the minimum gap between two mailed links of the same
// kind to the same account.
const ResendCooldown = 60 * time.Second

// AccountStoreForVerification defines the store interface needed by the
// verification and recovery orchestrators.
type AccountStoreForVerification interface {
	TokenStore
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	GetToken(ctx context.Context, secret string) (account.Token, error)
	LatestTokenAt(ctx context.Context, accountID, purpose string) (time.Time, error)
}

// VerificationDeps holds dependencies for the verification orchestrators.
type VerificationDeps struct {
	AccountStore AccountStoreForVerification
	Mail         MailDeps
	Tokens       TokenDeps
}

// ErrResendTooSoon matches every *CooldownError.
var ErrResendTooSoon = errors.New("resend cooldown active")

// CooldownError reports how long the caller must wait before asking for
// another link.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	secs := int(e.RetryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("espera %d segundos antes de pedir otro enlace", secs)
}

// Is makes errors.Is(err, ErrResendTooSoon) true.
func (e *CooldownError) Is(target error) bool { return target == ErrResendTooSoon }

// ResendVerificationInput carries input for ResendVerification.
type ResendVerificationInput struct {
	// Type is account.PurposeSignup or account.PurposeRecovery.
	Type  string
	Email string
}

// ExecuteResendVerification mails a fresh link of the given type. Unknown
// addresses, and signup links for already verified accounts, succeed
// silently so the response never reveals whether an account exists.
// PRE: Type is signup or recovery
// POST: at most one mail per account and type every ResendCooldown
func ExecuteResendVerification(ctx context.Context, input ResendVerificationInput, deps VerificationDeps) error {
	if input.Type != account.PurposeSignup && input.Type != account.PurposeRecovery {
		return account.ErrTokenPurpose
	}
	email := account.NormalizeEmail(input.Email)
	if !account.ValidEmail(email) {
		return account.ErrInvalidEmail
	}

	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil {
		slog.Info("auth_event", "event", "resend_skipped", "type", input.Type, "reason", "unknown_email")
		return nil
	}
	if input.Type == account.PurposeSignup && acct.EmailVerified {
		slog.Info("auth_event", "event", "resend_skipped", "type", input.Type, "account_id", acct.ID, "reason", "already_verified")
		return nil
	}

	now := clock(deps.Tokens.Now)
	last, err := deps.AccountStore.LatestTokenAt(ctx, acct.ID, input.Type)
	if err != nil {
		return err
	}
	if !last.IsZero() {
		if wait := last.Add(ResendCooldown).Sub(now); wait > 0 {
			slog.Info("auth_event", "event", "resend_throttled", "type", input.Type, "account_id", acct.ID)
			return &CooldownError{RetryAfter: wait}
		}
	}

	tok, err := issueToken(ctx, deps.AccountStore, deps.Tokens, acct.ID, input.Type)
	if err != nil {
		return err
	}
	return sendTokenMail(ctx, deps.Mail, acct.Email, tok)
}

// ExecuteVerifyEmail redeems a signup token. Redeeming a token for an
// account that is already verified succeeds.
// PRE: secret came from a verification link
// POST: account verified, token used
func ExecuteVerifyEmail(ctx context.Context, secret string, deps VerificationDeps) (account.Account, error) {
	if secret == "" {
		return account.Account{}, account.ErrTokenInvalid
	}
	now := clock(deps.Tokens.Now)

	tok, err := deps.AccountStore.GetToken(ctx, secret)
	if err != nil {
		slog.Info("auth_event", "event", "verify_failed", "reason", "unknown_token")
		return account.Account{}, account.ErrTokenInvalid
	}
	if err := tok.Redeemable(account.PurposeSignup, now); err != nil {
		slog.Info("auth_event", "event", "verify_failed", "account_id", tok.AccountID, "reason", err.Error())
		return account.Account{}, err
	}

	acct, err := deps.AccountStore.GetByID(ctx, tok.AccountID)
	if err != nil {
		return account.Account{}, err
	}
	if err := acct.MarkVerified(now); err == nil {
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			return account.Account{}, err
		}
	}

	tok.Invalidate()
	if err := deps.AccountStore.SaveToken(ctx, tok); err != nil {
		return account.Account{}, err
	}

	slog.Info("auth_event", "event", "email_verified", "account_id", acct.ID)
	return acct, nil
}
