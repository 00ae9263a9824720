package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"studio/internal/domain/account"
)

// AccountStoreForSignUp defines the store interface needed by SignUp.
type AccountStoreForSignUp interface {
	TokenStore
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, a account.Account) error
}

// SignUpInput carries input for the sign-up orchestrator.
type SignUpInput struct {
	Email    string
	Password string
}

// SignUpDeps holds dependencies for SignUp.
type SignUpDeps struct {
	AccountStore AccountStoreForSignUp
	Mail         MailDeps
	Tokens       TokenDeps
}

var ErrEmailTaken = errors.New("ya existe una cuenta con este email")

// ExecuteSignUp creates an unverified principal and mails it a
// verification link. A failed delivery is logged but does not undo the
// sign-up: the owner can ask for the link again. When the token cannot be
// stored the created account is returned together with the error.
// PRE: none
// POST: Account stored with EmailVerified=false, one live signup token
// INVARIANT: Email is unique among accounts
func ExecuteSignUp(ctx context.Context, input SignUpInput, deps SignUpDeps) (account.Account, error) {
	acct, err := createAccount(ctx, deps.AccountStore, deps.Tokens, input.Email, input.Password)
	if err != nil {
		return account.Account{}, err
	}
	tok, err := issueToken(ctx, deps.AccountStore, deps.Tokens, acct.ID, account.PurposeSignup)
	if err != nil {
		return acct, err
	}
	_ = sendTokenMail(ctx, deps.Mail, acct.Email, tok)
	return acct, nil
}

// createAccount validates, hashes and stores a new unverified principal.
func createAccount(ctx context.Context, store AccountStoreForSignUp, deps TokenDeps, email, password string) (account.Account, error) {
	acct := account.Account{
		ID:        newID(deps.GenerateID),
		Email:     account.NormalizeEmail(email),
		CreatedAt: clock(deps.Now),
	}
	if err := acct.Validate(); err != nil {
		return account.Account{}, err
	}
	if err := acct.SetPassword(password); err != nil {
		return account.Account{}, err
	}

	exists, err := store.ExistsByEmail(ctx, acct.Email)
	if err != nil {
		return account.Account{}, err
	}
	if exists {
		slog.Info("auth_event", "event", "signup_rejected", "email", acct.Email, "reason", "email_taken")
		return account.Account{}, ErrEmailTaken
	}

	if err := store.Save(ctx, acct); err != nil {
		return account.Account{}, err
	}
	slog.Info("auth_event", "event", "account_created", "account_id", acct.ID, "email", acct.Email)
	return acct, nil
}
