package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"studio/internal/adapters/email"
	"studio/internal/domain/account"
	"studio/internal/domain/client"
	"studio/internal/domain/consent"
	"studio/internal/domain/profile"
	"studio/internal/domain/store"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// testTokens returns deterministic id and secret generators.
func testTokens(now *time.Time) TokenDeps {
	var mu sync.Mutex
	n := 0
	next := func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
	return TokenDeps{
		GenerateID:     func() string { return next("id") },
		GenerateSecret: func() (string, error) { return next("secret"), nil },
		Now:            func() time.Time { return *now },
	}
}

// --- Mock account store ---

type mockAccountStore struct {
	accounts map[string]account.Account
	tokens   map[string]account.Token // by secret
	saves    int
	deleted  []string
	saveErr  error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts: map[string]account.Account{},
		tokens:   map[string]account.Token{},
	}
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (m *mockAccountStore) GetByEmail(_ context.Context, e string) (account.Account, error) {
	for _, a := range m.accounts {
		if a.Email == account.NormalizeEmail(e) {
			return a, nil
		}
	}
	return account.Account{}, store.ErrNotFound
}

func (m *mockAccountStore) Save(_ context.Context, a account.Account) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.accounts[a.ID] = a
	return nil
}

func (m *mockAccountStore) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.accounts, id)
	for k, t := range m.tokens {
		if t.AccountID == id {
			delete(m.tokens, k)
		}
	}
	return nil
}

func (m *mockAccountStore) Count(_ context.Context) (int, error) {
	return len(m.accounts), nil
}

func (m *mockAccountStore) ExistsByEmail(ctx context.Context, e string) (bool, error) {
	_, err := m.GetByEmail(ctx, e)
	return err == nil, nil
}

func (m *mockAccountStore) SaveToken(_ context.Context, t account.Token) error {
	m.tokens[t.Token] = t
	return nil
}

func (m *mockAccountStore) GetToken(_ context.Context, secret string) (account.Token, error) {
	t, ok := m.tokens[secret]
	if !ok {
		return account.Token{}, store.ErrNotFound
	}
	return t, nil
}

func (m *mockAccountStore) InvalidateTokens(_ context.Context, accountID, purpose string) error {
	for k, t := range m.tokens {
		if t.AccountID == accountID && t.Purpose == purpose {
			t.Used = true
			m.tokens[k] = t
		}
	}
	return nil
}

func (m *mockAccountStore) LatestTokenAt(_ context.Context, accountID, purpose string) (time.Time, error) {
	var latest time.Time
	for _, t := range m.tokens {
		if t.AccountID == accountID && t.Purpose == purpose && t.CreatedAt.After(latest) {
			latest = t.CreatedAt
		}
	}
	return latest, nil
}

// liveTokens returns the unused tokens of an account for purpose.
func (m *mockAccountStore) liveTokens(accountID, purpose string) []account.Token {
	var out []account.Token
	for _, t := range m.tokens {
		if t.AccountID == accountID && t.Purpose == purpose && !t.Used {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// --- Mock profile, client and signature stores ---

type mockProfileStore struct {
	profiles map[string]profile.Profile
	saves    int
	saveErr  error
	getErr   error
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: map[string]profile.Profile{}}
}

func (m *mockProfileStore) GetByID(_ context.Context, id string) (profile.Profile, error) {
	if m.getErr != nil {
		return profile.Profile{}, m.getErr
	}
	p, ok := m.profiles[id]
	if !ok {
		return profile.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (m *mockProfileStore) Save(_ context.Context, p profile.Profile) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *mockProfileStore) Delete(_ context.Context, id string) error {
	delete(m.profiles, id)
	return nil
}

type mockClientStore struct {
	clients map[string]client.Client
	saves   int
	saveErr error
}

func newMockClientStore() *mockClientStore {
	return &mockClientStore{clients: map[string]client.Client{}}
}

func (m *mockClientStore) Save(_ context.Context, c client.Client) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.clients[c.ID] = c
	return nil
}

func (m *mockClientStore) Delete(_ context.Context, id string) error {
	delete(m.clients, id)
	return nil
}

type mockSignatureStore struct {
	signatures []consent.Signature
	failOn     consent.Type
}

func (m *mockSignatureStore) Save(_ context.Context, s consent.Signature) error {
	if s.Type == m.failOn {
		return errors.New("signature write failed")
	}
	m.signatures = append(m.signatures, s)
	return nil
}

func (m *mockSignatureStore) DeleteByProfile(_ context.Context, profileID string) error {
	kept := m.signatures[:0]
	for _, s := range m.signatures {
		if s.ProfileID != profileID {
			kept = append(kept, s)
		}
	}
	m.signatures = kept
	return nil
}

// --- Mock email sender ---

type mockEmailSender struct {
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) (email.Receipt, error) {
	if m.err != nil {
		return email.Receipt{}, m.err
	}
	m.sent = append(m.sent, msg)
	return email.Receipt{MessageID: "mock-msg-id", SentAt: fixedNow}, nil
}

// --- Mock session revoker ---

type mockSessions struct {
	revoked []string
}

func (m *mockSessions) DeleteForAccount(_ context.Context, accountID string) error {
	m.revoked = append(m.revoked, accountID)
	return nil
}

// seedAccount stores a verified or unverified account with password.
func seedAccount(t interface{ Fatalf(string, ...any) }, accounts *mockAccountStore, id, mail, password string, verified bool) account.Account {
	a := account.Account{ID: id, Email: mail, CreatedAt: fixedNow, EmailVerified: verified}
	if err := a.SetPassword(password); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	accounts.accounts[id] = a
	return a
}
