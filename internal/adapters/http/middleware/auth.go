package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"studio/internal/adapters/storage/session"
)

type contextKey string

const (
	sessionContextKey   contextKey = "session"
	lookupErrContextKey contextKey = "session_lookup_error"
	identityContextKey  contextKey = "identity"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "studio_session"

// Session is the authenticated session attached to a request.
type Session struct {
	Token string
	session.Session
}

// Cookies writes and clears the session cookie.
type Cookies struct {
	Secure bool          // set in production (HTTPS only)
	MaxAge time.Duration // matches the session store TTL
}

// Set writes the session cookie.
func (c Cookies) Set(w http.ResponseWriter, token string) {
	maxAge := int(c.MaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = int(session.DefaultTTL / time.Second)
	}
	writeSessionCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   maxAge,
	})
}

// Clear removes the session cookie.
func (c Cookies) Clear(w http.ResponseWriter) {
	writeSessionCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// writeSessionCookie sets c, dropping any session cookie an earlier
// middleware already queued on the response.
// PRE: headers not yet written
func writeSessionCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, SessionCookieName+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}

// Auth returns middleware that resolves the session cookie, slides the
// session's expiry and rewrites the cookie. It never blocks: the access
// gate decides what an anonymous caller may see.
//
// A cookie naming an unknown or expired session is cleared. A store
// failure is recorded on the context so the gate treats the caller as
// anonymous.
func Auth(store session.Store, cookies Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := store.Refresh(r.Context(), cookie.Value)
			switch {
			case err == nil:
				cookies.Set(w, cookie.Value)
				r = r.WithContext(ContextWithSession(r.Context(), Session{Token: cookie.Value, Session: sess}))
			case errors.Is(err, session.ErrNotFound):
				cookies.Clear(w)
			default:
				slog.Warn("session_lookup_failed", "path", r.URL.Path, "error", err)
				r = r.WithContext(context.WithValue(r.Context(), lookupErrContextKey, err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(Session)
	return s, ok
}

// LookupErrorFromContext returns the session store failure seen by Auth.
func LookupErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(lookupErrContextKey).(error)
	return err
}

// ContextWithSession returns a context with the given session set.
// Intended for use in tests.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}
