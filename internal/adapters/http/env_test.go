package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"studio/internal/adapters/email"
	"studio/internal/adapters/http/middleware"
	"studio/internal/adapters/metrics"
	accountStore "studio/internal/adapters/storage/account"
	clientStore "studio/internal/adapters/storage/client"
	consentStore "studio/internal/adapters/storage/consent"
	profileStore "studio/internal/adapters/storage/profile"
	"studio/internal/adapters/storage/session"
	"studio/internal/adapters/storage/storagetest"
	"studio/internal/application/orchestrators"
	"studio/internal/domain/access"
	"studio/internal/domain/account"
	"studio/internal/domain/profile"
)

// testEnv is a wired package state backed by an in-memory database.
type testEnv struct {
	sessions *session.MemoryStore
	mail     *email.NoopSender
	metrics  *metrics.Metrics
}

// setupTestEnv points the package globals at fresh stores. Tests in this
// package share globals and must not run in parallel.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storagetest.Open(t)
	env := &testEnv{
		sessions: session.NewMemoryStore(time.Hour),
		mail:     email.NewNoopSender(),
		metrics:  metrics.New(),
	}

	stores = &Stores{
		AccountStore: accountStore.NewSQLiteStore(db),
		ProfileStore: profileStore.NewSQLiteStore(db),
		ClientStore:  clientStore.NewSQLiteStore(db),
		ConsentStore: consentStore.NewSQLiteStore(db),
	}
	sessions = env.sessions
	cookies = middleware.Cookies{MaxAge: time.Hour}
	gateConfig = access.DefaultConfig()
	mailer = env.mail
	appMetrics = env.metrics
	baseURL = "http://studio.test"
	health = nil
	debounceQuiet = time.Millisecond
	drafts = newDraftStore(DefaultDraftTTL, newAvailabilityCheckers)
	return env
}

// createStaff opens a verified staff account and returns its identity.
func createStaff(t *testing.T, emailAddr, password, role string) access.Identity {
	t.Helper()
	id, err := orchestrators.ExecuteCreateStaffAccount(context.Background(), orchestrators.CreateStaffAccountInput{
		Email:     emailAddr,
		Password:  password,
		GivenName: "Paola",
		Role:      role,
	}, orchestrators.CreateAccountDeps{
		AccountStore: stores.AccountStore,
		ProfileStore: stores.ProfileStore,
		Tokens:       tokenDeps(),
	})
	if err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	return access.Identity{
		PrincipalID:   id,
		Email:         emailAddr,
		EmailVerified: true,
		HasProfile:    true,
		Role:          role,
		Active:        true,
	}
}

// signUp opens an unverified account, which mails a verification link.
func signUp(t *testing.T, emailAddr, password string) string {
	t.Helper()
	acct, err := orchestrators.ExecuteSignUp(context.Background(), orchestrators.SignUpInput{
		Email:    emailAddr,
		Password: password,
	}, orchestrators.SignUpDeps{
		AccountStore: stores.AccountStore,
		Mail:         mailDeps(),
		Tokens:       tokenDeps(),
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	return acct.ID
}

var tokenPattern = regexp.MustCompile(`token=(\S+)`)

// lastToken extracts the token secret from the most recent mail.
func (e *testEnv) lastToken(t *testing.T) string {
	t.Helper()
	msg, ok := e.mail.Last()
	if !ok {
		t.Fatal("no mail sent")
	}
	m := tokenPattern.FindStringSubmatch(msg.Text)
	if m == nil {
		t.Fatalf("no token in mail text %q", msg.Text)
	}
	secret, err := url.QueryUnescape(m[1])
	if err != nil {
		t.Fatalf("unescape token: %v", err)
	}
	return secret
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withIdentity(r *http.Request, id access.Identity) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), id))
}

func withSession(r *http.Request, token string, s session.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), middleware.Session{Token: token, Session: s}))
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signaturePNG is a canvas capture as the browser posts it.
func signaturePNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// seedClientProfile stores a verified account and its active client
// profile with the given phone.
func seedClientProfile(t *testing.T, id, emailAddr, phone string) profile.Profile {
	t.Helper()
	now := time.Now()
	acct := account.Account{ID: id, Email: emailAddr, EmailVerified: true, VerifiedAt: now, CreatedAt: now}
	if err := acct.SetPassword("secreto123"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := stores.AccountStore.Save(context.Background(), acct); err != nil {
		t.Fatalf("save account: %v", err)
	}
	p := profile.Profile{
		ID:                 id,
		Email:              emailAddr,
		GivenName:          "Ana Sofía",
		FirstSurname:       "López",
		SecondSurname:      "Ruiz",
		Phone:              phone,
		BirthDate:          "1992-03-14",
		Gender:             profile.GenderFemale,
		Role:               profile.RoleClient,
		Active:             true,
		OnboardingComplete: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := stores.ProfileStore.Save(context.Background(), p); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	return p
}
