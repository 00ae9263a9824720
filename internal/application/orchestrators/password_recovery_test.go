package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studio/internal/domain/account"
)

func TestPasswordRecovery_RoundTrip(t *testing.T) {
	f := newVerificationFixture()
	a := seedAccount(t, f.store, "acc-1", "ana@strive.mx", "Secreta123", false)
	a.FailedLogins = account.MaxFailedLogins
	a.LockedUntil = fixedNow.Add(time.Hour)
	f.store.accounts["acc-1"] = a
	sessions := &mockSessions{}
	ctx := context.Background()

	if err := ExecuteRequestPasswordReset(ctx, "ana@strive.mx", f.deps()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0].Text, "/recuperar-password/nueva?token=") {
		t.Fatalf("recovery mail = %+v", f.sender.sent)
	}
	secret := f.store.liveTokens("acc-1", account.PurposeRecovery)[0].Token

	if err := ExecuteCheckResetToken(ctx, secret, f.deps()); err != nil {
		t.Fatalf("check: %v", err)
	}

	deps := ResetPasswordDeps{VerificationDeps: f.deps(), Sessions: sessions}
	if err := ExecuteResetPassword(ctx, ResetPasswordInput{Token: secret, Password: "NuevaClave9", ConfirmPassword: "NuevaClave9"}, deps); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got := f.store.accounts["acc-1"]
	if err := got.CheckPassword("NuevaClave9"); err != nil {
		t.Error("new password not set")
	}
	if got.IsLocked(fixedNow) || got.FailedLogins != 0 {
		t.Errorf("lockout not cleared: %+v", got)
	}
	if !got.EmailVerified {
		t.Error("recovery should verify the address")
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "acc-1" {
		t.Errorf("revoked = %v", sessions.revoked)
	}
	if err := ExecuteCheckResetToken(ctx, secret, f.deps()); !errors.Is(err, account.ErrTokenInvalid) {
		t.Errorf("used token err = %v", err)
	}
}

func TestExecuteResetPassword_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   func(secret string) ResetPasswordInput
		advance time.Duration
		wantErr error
	}{
		{"mismatch", func(s string) ResetPasswordInput {
			return ResetPasswordInput{Token: s, Password: "NuevaClave9", ConfirmPassword: "OtraClave9"}
		}, 0, ErrPasswordMismatch},
		{"short", func(s string) ResetPasswordInput {
			return ResetPasswordInput{Token: s, Password: "corta", ConfirmPassword: "corta"}
		}, 0, account.ErrPasswordTooShort},
		{"expired", func(s string) ResetPasswordInput {
			return ResetPasswordInput{Token: s, Password: "NuevaClave9", ConfirmPassword: "NuevaClave9"}
		}, account.RecoveryTokenTTL + time.Second, account.ErrTokenExpired},
		{"unknown", func(string) ResetPasswordInput {
			return ResetPasswordInput{Token: "nope", Password: "NuevaClave9", ConfirmPassword: "NuevaClave9"}
		}, 0, account.ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVerificationFixture()
			seedAccount(t, f.store, "acc-1", "ana@strive.mx", "Secreta123", true)
			tok := f.token(t, "acc-1", account.PurposeRecovery)
			f.now = f.now.Add(tt.advance)

			err := ExecuteResetPassword(context.Background(), tt.input(tok.Token), ResetPasswordDeps{VerificationDeps: f.deps()})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if a := f.store.accounts["acc-1"]; a.CheckPassword("Secreta123") != nil {
				t.Error("password changed by a rejected reset")
			}
		})
	}
}
