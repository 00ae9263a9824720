package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"studio/internal/adapters/http/middleware"
	"studio/internal/application/orchestrators"
	"studio/internal/domain/account"
)

// recoverySentMessage is shown whether or not the address has an account.
const recoverySentMessage = "Si el email está registrado, te enviamos un enlace para restablecer tu contraseña."

func handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	renderTemplate(w, r, "home.html", nil)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if health != nil {
		if err := health(r.Context()); err != nil {
			slog.Error("health_check_failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Query().Get(gateConfig.ReturnToParam())
	switch r.Method {
	case http.MethodGet:
		data := map[string]any{"ReturnTo": returnTo, "Email": ""}
		if r.URL.Query().Get("restablecida") == "1" {
			data["Notice"] = "Tu contraseña fue actualizada. Ya puedes iniciar sesión."
		}
		renderTemplate(w, r, "login.html", data)

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		email := r.FormValue("email")
		if rt := r.FormValue(gateConfig.ReturnToParam()); rt != "" {
			returnTo = rt
		}

		res, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
			Email:    email,
			Password: r.FormValue("password"),
		}, orchestrators.LoginDeps{AccountStore: stores.AccountStore, Now: timeNow})
		if err != nil {
			appMetrics.Auth("login_failed")
			if !errors.Is(err, orchestrators.ErrInvalidCredentials) && !errors.Is(err, orchestrators.ErrAccountLocked) {
				internalError(w, err)
				return
			}
			renderTemplateStatus(w, r, http.StatusUnauthorized, "login.html", map[string]any{
				"Error":    err.Error(),
				"Email":    email,
				"ReturnTo": returnTo,
			})
			return
		}

		if prev, ok := middleware.GetSessionFromContext(r.Context()); ok {
			if err := sessions.Delete(r.Context(), prev.Token); err != nil {
				slog.Warn("session_delete_failed", "error", err)
			}
		}
		token, _, err := sessions.Create(r.Context(), res.AccountID, res.Email)
		if err != nil {
			internalError(w, err)
			return
		}
		cookies.Set(w, token)
		appMetrics.Auth("login_success")
		slog.Info("login", "account_id", res.AccountID, "verified", res.EmailVerified)

		http.Redirect(w, r, loginTarget(r, res, returnTo), http.StatusSeeOther)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// loginTarget picks where a fresh session lands: the verification page,
// a safe return path, or the role's dashboard.
func loginTarget(r *http.Request, res orchestrators.LoginResult, returnTo string) string {
	if !res.EmailVerified {
		return gateConfig.VerifyPath()
	}
	if gateConfig.SafeReturnTarget(returnTo) {
		return returnTo
	}
	id, err := resolveIdentity(r.Context(), res.AccountID)
	if err != nil || id == nil || !id.HasProfile {
		return "/"
	}
	if base, ok := gateConfig.Dashboard(id.Role); ok {
		return base
	}
	return "/"
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s, ok := middleware.GetSessionFromContext(r.Context()); ok {
		if err := sessions.Delete(r.Context(), s.Token); err != nil {
			slog.Warn("session_delete_failed", "error", err)
		}
		slog.Info("logout", "account_id", s.AccountID)
	}
	cookies.Clear(w)
	appMetrics.Auth("logout")
	http.Redirect(w, r, gateConfig.LoginPath(), http.StatusSeeOther)
}

// pendingEmail is the address waiting for verification: the signed-in
// principal's, else the one passed along after registration.
func pendingEmail(r *http.Request) string {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		return id.Email
	}
	if s, ok := middleware.GetSessionFromContext(r.Context()); ok {
		return s.Email
	}
	return strings.TrimSpace(r.URL.Query().Get("email"))
}

func handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		renderTemplate(w, r, "verificar-email.html", map[string]any{"Email": pendingEmail(r)})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		email := pendingEmail(r)
		if email == "" {
			email = strings.TrimSpace(r.FormValue("email"))
		}
		data := map[string]any{"Email": email}

		err := orchestrators.ExecuteResendVerification(r.Context(), orchestrators.ResendVerificationInput{
			Type:  account.PurposeSignup,
			Email: email,
		}, verificationDeps())
		var cooldown *orchestrators.CooldownError
		switch {
		case errors.As(err, &cooldown):
			data["Error"] = cooldown.Error()
			renderTemplateStatus(w, r, http.StatusTooManyRequests, "verificar-email.html", data)
			return
		case errors.Is(err, account.ErrInvalidEmail), errors.Is(err, account.ErrEmptyEmail):
			data["Error"] = err.Error()
			renderTemplateStatus(w, r, http.StatusBadRequest, "verificar-email.html", data)
			return
		case err != nil:
			internalError(w, err)
			return
		}
		appMetrics.Auth("verification_resent")
		data["Notice"] = "Te enviamos un nuevo enlace de verificación."
		renderTemplate(w, r, "verificar-email.html", data)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	acct, err := orchestrators.ExecuteVerifyEmail(r.Context(), r.URL.Query().Get("token"), verificationDeps())
	if err != nil {
		if errors.Is(err, account.ErrTokenInvalid) || errors.Is(err, account.ErrTokenExpired) || errors.Is(err, account.ErrAlreadyVerified) {
			renderTemplateStatus(w, r, http.StatusBadRequest, "verificar-email.html", map[string]any{
				"Email": pendingEmail(r),
				"Error": err.Error(),
			})
			return
		}
		internalError(w, err)
		return
	}
	appMetrics.Auth("email_verified")
	slog.Info("email_verified", "account_id", acct.ID)
	http.Redirect(w, r, "/email-confirmado", http.StatusSeeOther)
}

func handleEmailConfirmed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, signedIn := middleware.GetSessionFromContext(r.Context())
	renderTemplate(w, r, "email-confirmado.html", map[string]any{"SignedIn": signedIn})
}

func handleRecoverPassword(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		renderTemplate(w, r, "recuperar-password.html", map[string]any{"Email": ""})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))
		if !account.ValidEmail(account.NormalizeEmail(email)) {
			renderTemplateStatus(w, r, http.StatusBadRequest, "recuperar-password.html", map[string]any{
				"Email": email,
				"Error": account.ErrInvalidEmail.Error(),
			})
			return
		}

		err := orchestrators.ExecuteRequestPasswordReset(r.Context(), email, verificationDeps())
		if err != nil && !errors.Is(err, orchestrators.ErrResendTooSoon) {
			internalError(w, err)
			return
		}
		if err == nil {
			appMetrics.Auth("recovery_requested")
		}
		renderTemplate(w, r, "recuperar-password.html", map[string]any{"Email": "", "Notice": recoverySentMessage})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func handleResetPassword(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		token := r.URL.Query().Get("token")
		data := map[string]any{"Token": token}
		if err := orchestrators.ExecuteCheckResetToken(r.Context(), token, verificationDeps()); err != nil {
			data["Invalid"] = true
			data["Error"] = err.Error()
			renderTemplateStatus(w, r, http.StatusBadRequest, "nueva-password.html", data)
			return
		}
		renderTemplate(w, r, "nueva-password.html", data)

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		token := r.FormValue("token")
		err := orchestrators.ExecuteResetPassword(r.Context(), orchestrators.ResetPasswordInput{
			Token:           token,
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirmar_password"),
		}, orchestrators.ResetPasswordDeps{VerificationDeps: verificationDeps(), Sessions: sessions})
		switch {
		case errors.Is(err, account.ErrTokenInvalid), errors.Is(err, account.ErrTokenExpired):
			renderTemplateStatus(w, r, http.StatusBadRequest, "nueva-password.html", map[string]any{
				"Token":   token,
				"Invalid": true,
				"Error":   err.Error(),
			})
			return
		case errors.Is(err, orchestrators.ErrPasswordMismatch),
			errors.Is(err, account.ErrPasswordTooShort),
			errors.Is(err, account.ErrEmptyPassword):
			renderTemplateStatus(w, r, http.StatusBadRequest, "nueva-password.html", map[string]any{
				"Token": token,
				"Error": err.Error(),
			})
			return
		case err != nil:
			internalError(w, err)
			return
		}
		cookies.Clear(w)
		appMetrics.Auth("password_reset")
		http.Redirect(w, r, gateConfig.LoginPath()+"?restablecida=1", http.StatusSeeOther)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func handleAccountDisabled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	renderTemplate(w, r, "cuenta-desactivada.html", nil)
}
