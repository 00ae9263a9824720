package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"studio/internal/adapters/http/middleware"
	"studio/internal/domain/profile"
)

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		password     string
		returnTo     string
		wantStatus   int
		wantLocation string
		wantCookie   bool
	}{
		{
			name:         "admin lands on dashboard",
			email:        "admin@example.com",
			password:     "secreto123",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/admin",
			wantCookie:   true,
		},
		{
			name:         "email is case insensitive",
			email:        "  ADMIN@example.com ",
			password:     "secreto123",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/admin",
			wantCookie:   true,
		},
		{
			name:         "safe return target is honoured",
			email:        "admin@example.com",
			password:     "secreto123",
			returnTo:     "/admin/clientes?pagina=2",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/admin/clientes?pagina=2",
			wantCookie:   true,
		},
		{
			name:         "protocol relative target is ignored",
			email:        "admin@example.com",
			password:     "secreto123",
			returnTo:     "//evil.example/phish",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/admin",
			wantCookie:   true,
		},
		{
			name:         "unverified account goes to verification",
			email:        "nuevo@example.com",
			password:     "secreto123",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/verificar-email",
			wantCookie:   true,
		},
		{
			name:       "wrong password",
			email:      "admin@example.com",
			password:   "incorrecta",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown email",
			email:      "nadie@example.com",
			password:   "secreto123",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			createStaff(t, "admin@example.com", "secreto123", profile.RoleAdmin)
			signUp(t, "nuevo@example.com", "secreto123")

			form := url.Values{"email": {tt.email}, "password": {tt.password}}
			if tt.returnTo != "" {
				form.Set("redirect", tt.returnTo)
			}
			rr := httptest.NewRecorder()
			handleLogin(rr, postForm("/login", form))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantLocation != "" {
				if got := rr.Header().Get("Location"); got != tt.wantLocation {
					t.Errorf("Location = %q, want %q", got, tt.wantLocation)
				}
			}
			c := findCookie(rr, middleware.SessionCookieName)
			if tt.wantCookie {
				if c == nil || c.Value == "" {
					t.Fatal("expected session cookie")
				}
				if _, err := env.sessions.Get(context.Background(), c.Value); err != nil {
					t.Errorf("session not stored: %v", err)
				}
			} else if c != nil {
				t.Errorf("unexpected session cookie %q", c.Value)
			}
		})
	}
}

func TestHandleLogin_FailedAttemptRerendersForm(t *testing.T) {
	env := setupTestEnv(t)
	createStaff(t, "admin@example.com", "secreto123", profile.RoleAdmin)

	rr := httptest.NewRecorder()
	handleLogin(rr, postForm("/login?redirect=%2Fadmin%2Fclases", url.Values{
		"email":    {"admin@example.com"},
		"password": {"nope"},
	}))

	body := rr.Body.String()
	if !strings.Contains(body, "email o contraseña incorrectos") {
		t.Errorf("missing error message: %s", body)
	}
	if !strings.Contains(body, `value="/admin/clases"`) {
		t.Errorf("return target not carried through the form")
	}
	if got := testutil.ToFloat64(env.metrics.AuthEvents.WithLabelValues("login_failed")); got != 1 {
		t.Errorf("login_failed = %v, want 1", got)
	}
}

func TestHandleLogin_ReplacesPreviousSession(t *testing.T) {
	env := setupTestEnv(t)
	id := createStaff(t, "coach@example.com", "secreto123", profile.RoleCoach)
	oldToken, old, err := env.sessions.Create(context.Background(), id.PrincipalID, id.Email)
	if err != nil {
		t.Fatal(err)
	}

	req := withSession(postForm("/login", url.Values{
		"email":    {"coach@example.com"},
		"password": {"secreto123"},
	}), oldToken, old)
	rr := httptest.NewRecorder()
	handleLogin(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rr.Code)
	}
	if _, err := env.sessions.Get(context.Background(), oldToken); err == nil {
		t.Error("previous session still valid after login")
	}
	if env.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", env.sessions.Len())
	}
}

func TestHandleLogin_ResetNotice(t *testing.T) {
	setupTestEnv(t)
	rr := httptest.NewRecorder()
	handleLogin(rr, httptest.NewRequest(http.MethodGet, "/login?restablecida=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Tu contraseña fue actualizada") {
		t.Error("missing reset notice")
	}
}

func TestHandleLogout(t *testing.T) {
	env := setupTestEnv(t)
	token, s, err := env.sessions.Create(context.Background(), "acct-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handleLogout(rr, withSession(httptest.NewRequest(http.MethodPost, "/logout", nil), token, s))

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("got %d to %q", rr.Code, rr.Header().Get("Location"))
	}
	if env.sessions.Len() != 0 {
		t.Error("session survived logout")
	}
	if c := findCookie(rr, middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("session cookie not cleared")
	}

	rr = httptest.NewRecorder()
	handleLogout(rr, httptest.NewRequest(http.MethodGet, "/logout", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /logout = %d, want 405", rr.Code)
	}
}

func TestEmailVerificationFlow(t *testing.T) {
	env := setupTestEnv(t)
	accountID := signUp(t, "nuevo@example.com", "secreto123")
	secret := env.lastToken(t)

	rr := httptest.NewRecorder()
	handleConfirmEmail(rr, httptest.NewRequest(http.MethodGet, "/verificar-email/confirmar?token="+url.QueryEscape(secret), nil))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/email-confirmado" {
		t.Fatalf("confirm: got %d to %q", rr.Code, rr.Header().Get("Location"))
	}
	acct, err := stores.AccountStore.GetByID(context.Background(), accountID)
	if err != nil {
		t.Fatal(err)
	}
	if !acct.EmailVerified {
		t.Error("account not verified")
	}

	rr = httptest.NewRecorder()
	handleConfirmEmail(rr, httptest.NewRequest(http.MethodGet, "/verificar-email/confirmar?token="+url.QueryEscape(secret), nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("reused token: status = %d, want 400", rr.Code)
	}
}

func TestHandleConfirmEmail_InvalidToken(t *testing.T) {
	setupTestEnv(t)
	for _, target := range []string{"/verificar-email/confirmar", "/verificar-email/confirmar?token=nope"} {
		rr := httptest.NewRecorder()
		handleConfirmEmail(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "el enlace no es válido") {
			t.Errorf("%s: missing error message", target)
		}
	}
}

func TestHandleVerifyEmail_ResendCooldown(t *testing.T) {
	env := setupTestEnv(t)
	accountID := signUp(t, "nuevo@example.com", "secreto123")
	token, s, err := env.sessions.Create(context.Background(), accountID, "nuevo@example.com")
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handleVerifyEmail(rr, withSession(httptest.NewRequest(http.MethodGet, "/verificar-email", nil), token, s))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "nuevo@example.com") {
		t.Fatalf("GET: status %d, body %s", rr.Code, rr.Body.String())
	}

	// The signup link was mailed a moment ago.
	rr = httptest.NewRecorder()
	handleVerifyEmail(rr, withSession(postForm("/verificar-email", url.Values{}), token, s))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("resend: status = %d, want 429", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "espera") {
		t.Error("missing cooldown message")
	}
	if n := len(env.mail.Sent()); n != 1 {
		t.Errorf("mails = %d, want 1", n)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	env := setupTestEnv(t)
	id := createStaff(t, "staff@example.com", "secreto123", profile.RoleStaff)
	if _, _, err := env.sessions.Create(context.Background(), id.PrincipalID, id.Email); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handleRecoverPassword(rr, postForm("/recuperar-password", url.Values{"email": {"staff@example.com"}}))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Si el email está registrado") {
		t.Fatalf("request: status %d", rr.Code)
	}
	secret := env.lastToken(t)

	rr = httptest.NewRecorder()
	handleResetPassword(rr, httptest.NewRequest(http.MethodGet, "/recuperar-password/nueva?token="+url.QueryEscape(secret), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("check token: status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handleResetPassword(rr, postForm("/recuperar-password/nueva", url.Values{
		"token":              {secret},
		"password":           {"otraClave99"},
		"confirmar_password": {"otraClave98"},
	}))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "las contraseñas no coinciden") {
		t.Fatalf("mismatch: status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handleResetPassword(rr, postForm("/recuperar-password/nueva", url.Values{
		"token":              {secret},
		"password":           {"otraClave99"},
		"confirmar_password": {"otraClave99"},
	}))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login?restablecida=1" {
		t.Fatalf("reset: got %d to %q", rr.Code, rr.Header().Get("Location"))
	}
	if env.sessions.Len() != 0 {
		t.Error("sessions not revoked after reset")
	}

	rr = httptest.NewRecorder()
	handleLogin(rr, postForm("/login", url.Values{"email": {"staff@example.com"}, "password": {"otraClave99"}}))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/staff" {
		t.Errorf("login with new password: got %d to %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = httptest.NewRecorder()
	handleResetPassword(rr, httptest.NewRequest(http.MethodGet, "/recuperar-password/nueva?token="+url.QueryEscape(secret), nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("used token: status = %d, want 400", rr.Code)
	}
}

func TestHandleRecoverPassword_DoesNotRevealAccounts(t *testing.T) {
	env := setupTestEnv(t)
	createStaff(t, "staff@example.com", "secreto123", profile.RoleStaff)

	var bodies []string
	for _, addr := range []string{"nadie@example.com", "staff@example.com", "staff@example.com"} {
		rr := httptest.NewRecorder()
		handleRecoverPassword(rr, postForm("/recuperar-password", url.Values{"email": {addr}}))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", addr, rr.Code)
		}
		bodies = append(bodies, rr.Body.String())
	}
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("response %d differs from the unknown-address response", i)
		}
	}
	// Second request for the same account falls in the cooldown.
	if n := len(env.mail.Sent()); n != 1 {
		t.Errorf("mails = %d, want 1", n)
	}
}

func TestHandleRecoverPassword_InvalidEmail(t *testing.T) {
	setupTestEnv(t)
	rr := httptest.NewRecorder()
	handleRecoverPassword(rr, postForm("/recuperar-password", url.Values{"email": {"no-es-email"}}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	setupTestEnv(t)

	rr := httptest.NewRecorder()
	handleHealthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("healthy: status = %d", rr.Code)
	}

	health = func(context.Context) error { return errors.New("redis down") }
	rr = httptest.NewRecorder()
	handleHealthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d, want 503", rr.Code)
	}
}

func TestHandleHome(t *testing.T) {
	setupTestEnv(t)
	tests := []struct {
		path string
		want int
	}{
		{"/", http.StatusOK},
		{"/no-existe", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		handleHome(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rr.Code, tt.want)
		}
	}
}
