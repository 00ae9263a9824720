package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"studio/internal/application/availability"
	"studio/internal/domain/account"
	"studio/internal/domain/profile"
	"studio/internal/domain/registration"
)

// DefaultDraftTTL is how long an untouched wizard draft survives.
const DefaultDraftTTL = time.Hour

const draftCookieName = "studio_registro"

// draft is one browser's wizard in progress. Nothing in it is persisted
// before submit.
type draft struct {
	mu      sync.Mutex
	state   registration.State
	checks  map[string]*availability.Checker // by form field
	touched time.Time
}

// draftStore keeps drafts in memory keyed by an opaque cookie value.
type draftStore struct {
	mu          sync.Mutex
	drafts      map[string]*draft
	ttl         time.Duration
	now         func() time.Time
	newCheckers func() map[string]*availability.Checker
}

func newDraftStore(ttl time.Duration, newCheckers func() map[string]*availability.Checker) *draftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &draftStore{
		drafts:      make(map[string]*draft),
		ttl:         ttl,
		now:         time.Now,
		newCheckers: newCheckers,
	}
}

// get returns the live draft named by the request's cookie.
func (ds *draftStore) get(r *http.Request) (*draft, bool) {
	c, err := r.Cookie(draftCookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	d, ok := ds.drafts[c.Value]
	if !ok {
		return nil, false
	}
	if ds.now().Sub(d.touched) > ds.ttl {
		ds.removeLocked(c.Value)
		return nil, false
	}
	d.touched = ds.now()
	return d, true
}

// getOrCreate returns the request's draft, starting a new one (and
// setting its cookie) when there is none.
func (ds *draftStore) getOrCreate(w http.ResponseWriter, r *http.Request) (*draft, error) {
	if d, ok := ds.get(r); ok {
		return d, nil
	}
	key, err := newDraftKey()
	if err != nil {
		return nil, err
	}
	d := &draft{
		state:   registration.NewState(),
		checks:  ds.newCheckers(),
		touched: ds.now(),
	}
	ds.mu.Lock()
	ds.drafts[key] = d
	ds.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     draftCookieName,
		Value:    key,
		Path:     "/registro",
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ds.ttl / time.Second),
	})
	return d, nil
}

// discard drops the request's draft and clears its cookie.
func (ds *draftStore) discard(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(draftCookieName); err == nil {
		ds.mu.Lock()
		ds.removeLocked(c.Value)
		ds.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookieName,
		Value:    "",
		Path:     "/registro",
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// removeLocked closes the draft's checkers so no lookup outlives it.
// PRE: ds.mu held
func (ds *draftStore) removeLocked(key string) {
	d, ok := ds.drafts[key]
	if !ok {
		return
	}
	delete(ds.drafts, key)
	for _, c := range d.checks {
		c.Close()
	}
}

// purge removes every expired draft and returns how many were dropped.
func (ds *draftStore) purge() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	n := 0
	for key, d := range ds.drafts {
		if ds.now().Sub(d.touched) > ds.ttl {
			ds.removeLocked(key)
			n++
		}
	}
	return n
}

// Len returns the number of drafts held, expired or not.
func (ds *draftStore) Len() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return len(ds.drafts)
}

// Sweep purges expired drafts every minute until ctx ends.
func (ds *draftStore) Sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ds.purge()
		}
	}
}

func newDraftKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// newAvailabilityCheckers builds the email and phone uniqueness checkers
// of one draft.
func newAvailabilityCheckers() map[string]*availability.Checker {
	observe := func(field string, outcome availability.Outcome) {
		appMetrics.Availability(field, string(outcome))
	}
	return map[string]*availability.Checker{
		registration.FieldEmail: availability.New(availability.Config{
			Field:          registration.FieldEmail,
			Lookup:         availability.LookupFunc(emailRegistered),
			Shape:          account.ValidEmail,
			Quiet:          debounceQuiet,
			InvalidMessage: "ingresa un email válido",
			TakenMessage:   "este email ya está registrado",
			Observe:        observe,
		}),
		registration.FieldPhone: availability.New(availability.Config{
			Field:          registration.FieldPhone,
			Lookup:         availability.LookupFunc(stores.ProfileStore.ExistsByPhone),
			Shape:          profile.IsPhone,
			Quiet:          debounceQuiet,
			InvalidMessage: "el teléfono debe tener 10 dígitos",
			TakenMessage:   "este teléfono ya está registrado",
			Observe:        observe,
		}),
	}
}

// emailRegistered reports whether a principal or a profile already uses
// the address.
func emailRegistered(ctx context.Context, email string) (bool, error) {
	email = account.NormalizeEmail(email)
	taken, err := stores.AccountStore.ExistsByEmail(ctx, email)
	if err != nil || taken {
		return taken, err
	}
	return stores.ProfileStore.ExistsByEmail(ctx, email)
}
