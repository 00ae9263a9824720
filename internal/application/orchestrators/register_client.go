package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"studio/internal/domain/account"
	"studio/internal/domain/client"
	"studio/internal/domain/consent"
	"studio/internal/domain/profile"
	"studio/internal/domain/registration"
)

// AccountStoreForRegistration defines the account operations registration
// needs, including the delete used to compensate a failed submission.
type AccountStoreForRegistration interface {
	AccountStoreForSignUp
	Delete(ctx context.Context, id string) error
}

// ProfileStoreForRegistration defines the profile operations registration needs.
type ProfileStoreForRegistration interface {
	Save(ctx context.Context, p profile.Profile) error
	Delete(ctx context.Context, id string) error
}

// ClientStoreForRegistration defines the client operations registration needs.
type ClientStoreForRegistration interface {
	Save(ctx context.Context, c client.Client) error
	Delete(ctx context.Context, id string) error
}

// SignatureStoreForRegistration defines the signature operations registration needs.
type SignatureStoreForRegistration interface {
	Save(ctx context.Context, s consent.Signature) error
	DeleteByProfile(ctx context.Context, profileID string) error
}

// RegisterClientInput carries a finished wizard plus request metadata
// stamped on the signatures.
type RegisterClientInput struct {
	Submission registration.Submission
	IPAddress  string
	UserAgent  string
}

// RegisterClientDeps holds dependencies for RegisterClient.
type RegisterClientDeps struct {
	AccountStore   AccountStoreForRegistration
	ProfileStore   ProfileStoreForRegistration
	ClientStore    ClientStoreForRegistration
	SignatureStore SignatureStoreForRegistration
	Mail           MailDeps
	Tokens         TokenDeps

	// Random feeds referral codes; nil selects crypto/rand.
	Random io.Reader
	// Observe, when set, receives the outcome label of every call.
	Observe func(result string)
}

// Registration outcome labels.
const (
	RegistrationSuccess   = "success"
	RegistrationInvalid   = "invalid"
	RegistrationTaken     = "email_taken"
	RegistrationWriteFail = "write_failed"
)

// ExecuteRegisterClient persists a finished registration: the principal,
// a client profile, the client extension row and both consent
// signatures, then mails the verification link.
//
// Writes are committed one by one. If any write after the principal
// fails, every row created so far is deleted again (best effort, logged)
// so no principal is left without a profile.
// PRE: sub passed every wizard step validator
// POST: on success all rows exist and one signup token was issued;
// on failure none of them remain
func ExecuteRegisterClient(ctx context.Context, input RegisterClientInput, deps RegisterClientDeps) (res registration.Result, err error) {
	observe := func(result string) {
		if deps.Observe != nil {
			deps.Observe(result)
		}
	}
	sub := input.Submission

	terms, err := consent.DecodeSignature(sub.TermsSignature)
	if err != nil {
		observe(RegistrationInvalid)
		return registration.Result{}, err
	}
	waiver, err := consent.DecodeSignature(sub.WaiverSignature)
	if err != nil {
		observe(RegistrationInvalid)
		return registration.Result{}, err
	}
	referral, err := client.NewReferralCode(sub.GivenName, deps.Random)
	if err != nil {
		observe(RegistrationWriteFail)
		return registration.Result{}, err
	}

	acct, err := createAccount(ctx, deps.AccountStore, deps.Tokens, sub.Email, sub.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			observe(RegistrationTaken)
		} else {
			observe(RegistrationInvalid)
		}
		return registration.Result{}, err
	}

	rb := &rollback{accountID: acct.ID, deps: deps}
	defer func() {
		if err != nil {
			rb.run(ctx)
			observe(RegistrationWriteFail)
			err = fmt.Errorf("no pudimos completar tu registro: %w", err)
		}
	}()

	now := clock(deps.Tokens.Now)
	p := profile.Profile{
		ID:                 acct.ID,
		Email:              acct.Email,
		GivenName:          sub.GivenName,
		FirstSurname:       sub.FirstSurname,
		SecondSurname:      sub.SecondSurname,
		Phone:              sub.Phone,
		BirthDate:          sub.BirthDate,
		Gender:             sub.Gender,
		Role:               profile.RoleClient,
		Active:             true,
		OnboardingComplete: true,
		TermsAcceptedAt:    now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err = p.Validate(); err != nil {
		return registration.Result{}, err
	}
	if err = deps.ProfileStore.Save(ctx, p); err != nil {
		return registration.Result{}, err
	}
	rb.profile = true

	c := client.New(acct.ID, now)
	c.ReferralCode = referral
	if sub.Discipline != "" {
		c.Discipline = sub.Discipline
	}
	c.PreferredSchedule = sub.PreferredSchedule
	c.HeardFrom = sub.HeardFrom
	c.MedicalConditions = sub.MedicalConditions
	c.EmergencyName = sub.EmergencyName
	c.EmergencyPhone = sub.EmergencyPhone
	c.EmergencyRelation = sub.EmergencyRelation
	c.TermsSignedAt = now
	c.WaiverSigned = true
	c.WaiverSignedAt = now
	if err = c.Validate(); err != nil {
		return registration.Result{}, err
	}
	if err = deps.ClientStore.Save(ctx, c); err != nil {
		return registration.Result{}, err
	}
	rb.client = true

	for _, sig := range []struct {
		kind  consent.Type
		image []byte
	}{{consent.TypeTerms, terms}, {consent.TypeWaiver, waiver}} {
		s := consent.Signature{
			ID:        newID(deps.Tokens.GenerateID),
			ProfileID: acct.ID,
			Type:      sig.kind,
			Version:   consent.DocumentVersion,
			Image:     sig.image,
			IPAddress: input.IPAddress,
			UserAgent: input.UserAgent,
			SignedAt:  now,
		}
		if err = s.Validate(); err != nil {
			return registration.Result{}, err
		}
		rb.signatures = true
		if err = deps.SignatureStore.Save(ctx, s); err != nil {
			return registration.Result{}, err
		}
	}

	// From here on the registration stands; a missing mail can be resent.
	if tok, tokErr := issueToken(ctx, deps.AccountStore, deps.Tokens, acct.ID, account.PurposeSignup); tokErr != nil {
		slog.Error("registration_event", "event", "token_failed", "account_id", acct.ID, "error", tokErr)
	} else {
		_ = sendTokenMail(ctx, deps.Mail, acct.Email, tok)
	}

	slog.Info("registration_event", "event", "client_registered", "account_id", acct.ID, "referral_code", referral)
	observe(RegistrationSuccess)
	return registration.Result{AccountID: acct.ID, ReferralCode: referral, Email: acct.Email}, nil
}

// rollback remembers which rows a submission created.
type rollback struct {
	accountID  string
	profile    bool
	client     bool
	signatures bool
	deps       RegisterClientDeps
}

// run deletes the created rows in reverse order. It keeps going after a
// failed delete and logs every failure.
func (rb *rollback) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	undo := func(step string, fn func() error) {
		if err := fn(); err != nil {
			slog.Error("registration_event", "event", "rollback_failed", "step", step, "account_id", rb.accountID, "error", err)
		}
	}
	if rb.signatures {
		undo("signatures", func() error { return rb.deps.SignatureStore.DeleteByProfile(ctx, rb.accountID) })
	}
	if rb.client {
		undo("client", func() error { return rb.deps.ClientStore.Delete(ctx, rb.accountID) })
	}
	if rb.profile {
		undo("profile", func() error { return rb.deps.ProfileStore.Delete(ctx, rb.accountID) })
	}
	undo("account", func() error { return rb.deps.AccountStore.Delete(ctx, rb.accountID) })
	slog.Warn("registration_event", "event", "rolled_back", "account_id", rb.accountID)
}

// NewClientSubmitter adapts ExecuteRegisterClient to the wizard's
// Submitter for one request.
func NewClientSubmitter(ipAddress, userAgent string, deps RegisterClientDeps) registration.Submitter {
	return registration.SubmitterFunc(func(ctx context.Context, sub registration.Submission) (registration.Result, error) {
		return ExecuteRegisterClient(ctx, RegisterClientInput{
			Submission: sub,
			IPAddress:  ipAddress,
			UserAgent:  userAgent,
		}, deps)
	})
}
