package web

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"studio/internal/adapters/email"
	"studio/internal/adapters/http/middleware"
	"studio/internal/adapters/metrics"
	accountStore "studio/internal/adapters/storage/account"
	clientStore "studio/internal/adapters/storage/client"
	consentStore "studio/internal/adapters/storage/consent"
	profileStore "studio/internal/adapters/storage/profile"
	"studio/internal/adapters/storage/session"
	"studio/internal/application/orchestrators"
	"studio/internal/config"
	"studio/internal/domain/access"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore accountStore.Store
	ProfileStore profileStore.Store
	ClientStore  clientStore.Store
	ConsentStore consentStore.Store
}

// Options carries everything NewMux needs besides the stores.
type Options struct {
	Config   config.Config
	Access   access.Config
	Sessions session.Store
	Mailer   email.Sender
	Metrics  *metrics.Metrics

	// Health reports whether backing services are reachable; nil means
	// always healthy.
	Health func(ctx context.Context) error
}

// timeNow is a variable for testability.
var timeNow = time.Now

// Package state, set by NewMux.
var (
	stores     *Stores
	sessions   session.Store
	cookies    middleware.Cookies
	gateConfig access.Config
	mailer     email.Sender
	appMetrics *metrics.Metrics
	drafts     *draftStore
	baseURL    string
	health     func(ctx context.Context) error

	// debounceQuiet is the availability checkers' quiet period.
	debounceQuiet time.Duration
)

// Wizard endpoints called on every keystroke. They share their own rate
// limit budget.
const (
	pathAvailability = "/registro/disponibilidad"
	pathStrength     = "/registro/fortaleza"
)

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// NewMux wires HTTP handlers for the app. Background sweeps of the
// registration drafts and the rate limiter run until ctx ends.
func NewMux(ctx context.Context, s *Stores, opts Options) (http.Handler, error) {
	csrfKey, err := loadCSRFKey(opts.Config)
	if err != nil {
		return nil, err
	}

	stores = s
	sessions = opts.Sessions
	cookies = middleware.Cookies{Secure: opts.Config.IsProduction(), MaxAge: opts.Config.SessionTTL}
	gateConfig = opts.Access
	mailer = opts.Mailer
	appMetrics = opts.Metrics
	if appMetrics == nil {
		appMetrics = metrics.New()
	}
	baseURL = opts.Config.BaseURL
	health = opts.Health
	debounceQuiet = opts.Config.DebounceQuiet
	drafts = newDraftStore(DefaultDraftTTL, newAvailabilityCheckers)
	go drafts.Sweep(ctx)

	mux := http.NewServeMux()
	registerRoutes(mux)

	if opts.Config.RateLimit > 0 {
		RateLimitPerSecond = opts.Config.RateLimit
	}
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)
	go limiter.Sweep(ctx)
	keystrokes := middleware.NewRateLimiter(max(opts.Config.KeystrokeRateLimit, RateLimitPerSecond), time.Second)
	go keystrokes.Sweep(ctx)

	// Request flow: Timing -> RateLimit -> SecurityHeaders -> Auth -> Gate -> CSRF -> Mux
	return middleware.Chain(mux,
		middleware.CSRF(csrfKey, opts.Config.IsProduction(), trustedOrigins(opts.Config.BaseURL)),
		middleware.Gate(middleware.GateDeps{
			Config:   gateConfig,
			Resolve:  resolveIdentity,
			Sessions: sessions,
			Cookies:  cookies,
			Metrics:  appMetrics,
		}),
		middleware.Auth(sessions, cookies),
		middleware.SecurityHeaders,
		middleware.RateLimitByPath(limiter, map[string]*middleware.RateLimiter{
			pathAvailability: keystrokes,
			pathStrength:     keystrokes,
		}),
		middleware.Timing(appMetrics, time.Duration(opts.Config.SlowRequestMs)*time.Millisecond, timingAreas),
	), nil
}

// timingAreas are the first path segments reported as metric areas.
var timingAreas = []string{
	"login", "logout", "registro", "verificar-email", "email-confirmado",
	"recuperar-password", "cuenta-desactivada", "admin", "coach", "staff",
	"cliente", "cuenta", "metrics", "healthz",
}

func registerRoutes(mux *http.ServeMux) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.Handle("/metrics", appMetrics.Handler())
	mux.HandleFunc("/healthz", handleHealthz)

	mux.HandleFunc("/", handleHome)
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/logout", handleLogout)

	mux.HandleFunc("/registro", handleRegistration)
	mux.HandleFunc(pathAvailability, handleAvailability)
	mux.HandleFunc(pathStrength, handlePasswordStrength)

	mux.HandleFunc("/verificar-email", handleVerifyEmail)
	mux.HandleFunc("/verificar-email/confirmar", handleConfirmEmail)
	mux.HandleFunc("/email-confirmado", handleEmailConfirmed)
	mux.HandleFunc("/recuperar-password", handleRecoverPassword)
	mux.HandleFunc("/recuperar-password/nueva", handleResetPassword)
	mux.HandleFunc("/cuenta-desactivada", handleAccountDisabled)

	mux.HandleFunc("/admin/personal", handleCreateStaff)
	mux.HandleFunc(pathChangePassword, handleChangePassword)
	for _, area := range roleAreas {
		mux.HandleFunc("/"+area.Role, handleDashboard)
		mux.HandleFunc("/"+area.Role+"/", handleDashboard)
	}
}

// loadCSRFKey returns the configured CSRF secret. In production the key
// MUST be set (config validation enforces it). In development, a random
// key is generated per startup.
func loadCSRFKey(cfg config.Config) ([]byte, error) {
	key, err := cfg.CSRFKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("STUDIO_CSRF_KEY is required in production")
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate CSRF key: %w", err)
	}
	slog.Warn("csrf_key_random", "detail", "CSRF tokens will not survive a restart; set STUDIO_CSRF_KEY")
	return key, nil
}

// trustedOrigins lists the host of the public base URL.
func trustedOrigins(base string) []string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// --- Orchestrator dependencies ---

func tokenDeps() orchestrators.TokenDeps {
	return orchestrators.TokenDeps{Now: timeNow}
}

func mailDeps() orchestrators.MailDeps {
	return orchestrators.MailDeps{Sender: mailer, BaseURL: baseURL}
}

func verificationDeps() orchestrators.VerificationDeps {
	return orchestrators.VerificationDeps{
		AccountStore: stores.AccountStore,
		Mail:         mailDeps(),
		Tokens:       tokenDeps(),
	}
}

func registerClientDeps() orchestrators.RegisterClientDeps {
	return orchestrators.RegisterClientDeps{
		AccountStore:   stores.AccountStore,
		ProfileStore:   stores.ProfileStore,
		ClientStore:    stores.ClientStore,
		SignatureStore: stores.ConsentStore,
		Mail:           mailDeps(),
		Tokens:         tokenDeps(),
		Observe:        appMetrics.Registration,
	}
}

func resolveIdentity(ctx context.Context, accountID string) (*access.Identity, error) {
	return orchestrators.ExecuteResolveIdentity(ctx, accountID, orchestrators.ResolveIdentityDeps{
		AccountStore: stores.AccountStore,
		ProfileStore: stores.ProfileStore,
	})
}
