package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"studio/internal/adapters/http/middleware"
	"studio/internal/adapters/storage"
	"studio/internal/application/orchestrators"
	"studio/internal/domain/account"
	"studio/internal/domain/consent"
	"studio/internal/domain/profile"
)

// menuItem is one entry of a role's navigation.
type menuItem struct {
	Path  string
	Label string
}

// roleArea is the dashboard area owned by one role.
type roleArea struct {
	Role  string
	Title string
	Menu  []menuItem
}

var roleAreas = []roleArea{
	{
		Role:  profile.RoleAdmin,
		Title: "Administración",
		Menu: []menuItem{
			{"/admin/espacios", "Espacios"},
			{"/admin/personal", "Personal"},
			{"/admin/clases", "Clases"},
			{"/admin/clientes", "Clientes"},
			{"/admin/finanzas", "Finanzas"},
			{"/admin/reportes", "Reportes"},
		},
	},
	{
		Role:  profile.RoleCoach,
		Title: "Coach",
		Menu: []menuItem{
			{"/coach/clases", "Mis clases"},
			{"/coach/calendario", "Calendario"},
			{"/coach/calificaciones", "Calificaciones"},
			{"/coach/perfil", "Perfil"},
		},
	},
	{
		Role:  profile.RoleStaff,
		Title: "Recepción",
		Menu: []menuItem{
			{"/staff/checkin", "Check-in"},
			{"/staff/ventas", "Ventas"},
			{"/staff/inventario", "Inventario"},
		},
	},
	{
		Role:  profile.RoleClient,
		Title: "Mi cuenta",
		Menu: []menuItem{
			{"/cliente/reservar", "Reservar"},
			{"/cliente/reservas", "Mis reservas"},
			{"/cliente/paquetes", "Paquetes"},
			{"/cliente/historial", "Historial"},
			{"/cliente/perfil", "Perfil"},
		},
	},
}

func areaFor(role string) (roleArea, bool) {
	for _, a := range roleAreas {
		if a.Role == role {
			return a, true
		}
	}
	return roleArea{}, false
}

func menuFor(role string) []menuItem {
	a, _ := areaFor(role)
	return a.Menu
}

// staffRoles are offered by the staff creation form.
var staffRoles = []option{
	{profile.RoleCoach, "Coach"},
	{profile.RoleStaff, "Recepción"},
	{profile.RoleAdmin, "Administrador"},
}

// handleDashboard serves a role's landing page and the placeholders of its
// menu. The gate has already confined the caller to their own area.
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, gateConfig.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	area, ok := areaFor(id.Role)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if id.PasswordChangeRequired {
		http.Redirect(w, r, pathChangePassword, http.StatusSeeOther)
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	if path != "/"+area.Role {
		for _, item := range area.Menu {
			if item.Path == path {
				renderTemplate(w, r, "proximamente.html", map[string]any{"Area": area, "Item": item})
				return
			}
		}
		http.NotFound(w, r)
		return
	}

	data, err := dashboardData(r, id.PrincipalID, area)
	if err != nil {
		internalError(w, err)
		return
	}
	if r.URL.Query().Get("password") == "cambiada" {
		data["Notice"] = "Tu contraseña se actualizó"
	}
	renderTemplate(w, r, "dashboard.html", data)
}

// dashboardData loads the profile and the role-specific sections of a
// dashboard.
func dashboardData(r *http.Request, principalID string, area roleArea) (map[string]any, error) {
	p, err := stores.ProfileStore.GetByID(r.Context(), principalID)
	if err != nil {
		return nil, err
	}
	data := map[string]any{"Area": area, "Profile": p}

	switch area.Role {
	case profile.RoleAdmin:
		err = addAdminData(r, data)
	case profile.RoleClient:
		err = addClientData(r, p, data)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func addAdminData(r *http.Request, data map[string]any) error {
	counts, err := stores.ProfileStore.CountByRole(r.Context())
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	data["Counts"] = counts
	data["TotalProfiles"] = total
	data["StaffRoles"] = staffRoles
	if q := r.URL.Query(); q.Get("creado") != "" {
		data["Notice"] = "Cuenta creada para " + q.Get("creado")
	}
	return nil
}

func addClientData(r *http.Request, p profile.Profile, data map[string]any) error {
	c, err := stores.ClientStore.GetByID(r.Context(), p.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		slog.Warn("client_row_missing", "profile_id", p.ID)
	case err != nil:
		return err
	default:
		data["Client"] = c
	}

	sigs, err := stores.ConsentStore.ListByProfile(r.Context(), p.ID)
	if err != nil {
		return err
	}
	signed := make(map[string]consent.Signature, len(sigs))
	for _, s := range sigs {
		signed[string(s.Type)] = s
	}
	data["Signatures"] = signed
	return nil
}

// handleCreateStaff lets an admin open an account for a coach, receptionist
// or another admin.
func handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		http.Redirect(w, r, "/"+profile.RoleAdmin+"#personal", http.StatusSeeOther)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !middleware.IsRole(r.Context(), profile.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if id, _ := middleware.IdentityFromContext(r.Context()); id.PasswordChangeRequired {
		http.Redirect(w, r, pathChangePassword, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	input := orchestrators.CreateStaffAccountInput{
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		GivenName: r.FormValue("nombre"),
		Role:      r.FormValue("rol"),
	}
	accountID, err := orchestrators.ExecuteCreateStaffAccount(r.Context(), input, orchestrators.CreateAccountDeps{
		AccountStore: stores.AccountStore,
		ProfileStore: stores.ProfileStore,
		Tokens:       tokenDeps(),
	})
	if err != nil {
		if isStaffInputError(err) {
			renderStaffFormError(w, r, input, err)
			return
		}
		internalError(w, err)
		return
	}

	actor, _ := middleware.IdentityFromContext(r.Context())
	slog.Info("staff_account_created", "account_id", accountID, "role", input.Role, "created_by", actor.PrincipalID)
	q := url.Values{"creado": {account.NormalizeEmail(input.Email)}}
	http.Redirect(w, r, "/"+profile.RoleAdmin+"?"+q.Encode(), http.StatusSeeOther)
}

func isStaffInputError(err error) bool {
	for _, target := range []error{
		orchestrators.ErrStaffRole,
		orchestrators.ErrEmailTaken,
		account.ErrEmptyEmail,
		account.ErrInvalidEmail,
		account.ErrEmailTooLong,
		account.ErrEmptyPassword,
		account.ErrPasswordTooShort,
		account.ErrPasswordTooLong,
		profile.ErrEmptyName,
		profile.ErrNameTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func renderStaffFormError(w http.ResponseWriter, r *http.Request, input orchestrators.CreateStaffAccountInput, err error) {
	id, _ := middleware.IdentityFromContext(r.Context())
	area, _ := areaFor(profile.RoleAdmin)
	data, derr := dashboardData(r, id.PrincipalID, area)
	if derr != nil {
		internalError(w, derr)
		return
	}
	data["StaffForm"] = input
	data["Error"] = err.Error()
	renderTemplateStatus(w, r, http.StatusBadRequest, "dashboard.html", data)
}

// pathChangePassword hosts the password form for accounts that must
// replace their initial password.
const pathChangePassword = "/cuenta/password"

// handleChangePassword replaces the signed-in user's password. All their
// sessions are revoked and a fresh one is issued for this browser. GET shows
// the standalone form; other callers use the one on their dashboard.
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, gateConfig.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	area, ok := areaFor(id.Role)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodGet {
		if !id.PasswordChangeRequired {
			http.Redirect(w, r, "/"+area.Role+"#password", http.StatusSeeOther)
			return
		}
		renderTemplate(w, r, "cambiar-password.html", map[string]any{})
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		AccountID:       id.PrincipalID,
		CurrentPassword: r.FormValue("actual"),
		NewPassword:     r.FormValue("nueva"),
		ConfirmPassword: r.FormValue("confirmar"),
	}, orchestrators.ChangePasswordDeps{AccountStore: stores.AccountStore, Sessions: sessions})
	if err != nil {
		if !isPasswordInputError(err) {
			internalError(w, err)
			return
		}
		if id.PasswordChangeRequired {
			renderTemplateStatus(w, r, http.StatusBadRequest, "cambiar-password.html", map[string]any{"PasswordError": err.Error()})
			return
		}
		data, derr := dashboardData(r, id.PrincipalID, area)
		if derr != nil {
			internalError(w, derr)
			return
		}
		data["PasswordError"] = err.Error()
		renderTemplateStatus(w, r, http.StatusBadRequest, "dashboard.html", data)
		return
	}

	token, _, err := sessions.Create(r.Context(), id.PrincipalID, id.Email)
	if err != nil {
		internalError(w, err)
		return
	}
	cookies.Set(w, token)
	appMetrics.Auth("password_changed")
	http.Redirect(w, r, "/"+area.Role+"?password=cambiada", http.StatusSeeOther)
}

func isPasswordInputError(err error) bool {
	for _, target := range []error{
		orchestrators.ErrPasswordFieldsEmpty,
		orchestrators.ErrPasswordMismatch,
		orchestrators.ErrCurrentPasswordWrong,
		orchestrators.ErrNewPasswordSame,
		account.ErrEmptyPassword,
		account.ErrPasswordTooShort,
		account.ErrPasswordTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
