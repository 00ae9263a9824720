package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"studio/internal/adapters/metrics"
	"studio/internal/adapters/storage/session"
	"studio/internal/domain/access"
)

// ResolveFunc loads the caller's identity for a session's account. It
// returns nil, nil when the account no longer exists.
type ResolveFunc func(ctx context.Context, accountID string) (*access.Identity, error)

// GateDeps holds the gate's collaborators.
type GateDeps struct {
	Config   access.Config
	Resolve  ResolveFunc
	Sessions session.Store
	Cookies  Cookies
	Metrics  *metrics.Metrics
}

// Gate returns middleware that applies access.Decide to every request.
// It must run inside Auth. Allowed requests carry the resolved identity
// on their context.
func Gate(deps GateDeps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if deps.Config.IsExempt(r.URL.Path) {
				deps.Metrics.GateDecision(access.Allow.String(), access.ReasonExempt)
				next.ServeHTTP(w, r)
				return
			}

			sess, hasSession := GetSessionFromContext(r.Context())
			lookupErr := LookupErrorFromContext(r.Context())

			var id *access.Identity
			if hasSession && lookupErr == nil {
				resolved, err := deps.Resolve(r.Context(), sess.AccountID)
				switch {
				case err != nil:
					slog.Error("identity_lookup_failed", "account_id", sess.AccountID, "error", err)
					lookupErr = err
				case resolved == nil:
					// Account removed while the session lived on.
					signOut(w, r, deps, sess)
					hasSession = false
				default:
					id = resolved
				}
			}

			d := access.Decide(deps.Config, r.URL.RequestURI(), id, lookupErr)
			deps.Metrics.GateDecision(d.Outcome.String(), d.Reason)

			switch d.Outcome {
			case access.Allow:
				if id != nil {
					r = r.WithContext(ContextWithIdentity(r.Context(), *id))
				}
				next.ServeHTTP(w, r)
			case access.Redirect:
				slog.Info("gate_redirect", "path", r.URL.Path, "location", d.Location, "reason", d.Reason)
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			case access.SignOutAndRedirect:
				slog.Warn("gate_redirect", "path", r.URL.Path, "location", d.Location, "reason", d.Reason, "sign_out", true)
				if hasSession {
					signOut(w, r, deps, sess)
				}
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			}
		})
	}
}

// signOut deletes the server session and clears the cookie. A failed
// delete is logged; the cookie is cleared regardless.
func signOut(w http.ResponseWriter, r *http.Request, deps GateDeps, sess Session) {
	if err := deps.Sessions.Delete(r.Context(), sess.Token); err != nil {
		slog.Error("session_delete_failed", "account_id", sess.AccountID, "error", err)
	}
	deps.Cookies.Clear(w)
}

// IdentityFromContext returns the identity the gate resolved.
func IdentityFromContext(ctx context.Context) (access.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(access.Identity)
	return id, ok
}

// ContextWithIdentity returns a context carrying id.
func ContextWithIdentity(ctx context.Context, id access.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IsRole checks if the current identity has one of the given roles.
func IsRole(ctx context.Context, roles ...string) bool {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	for _, role := range roles {
		if id.Role == role {
			return true
		}
	}
	return false
}
