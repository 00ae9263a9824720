package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"studio/internal/application/availability"
	"studio/internal/application/orchestrators"
	"studio/internal/domain/account"
	"studio/internal/domain/client"
	"studio/internal/domain/consent"
	"studio/internal/domain/profile"
	"studio/internal/domain/registration"
)

// Wizard actions posted as "accion".
const (
	actionNext     = "siguiente"
	actionPrevious = "anterior"
	actionSubmit   = "enviar"
	actionRestart  = "reiniciar"
)

// Hidden inputs carrying canvas captures on the consent step.
const (
	fieldTermsSignature  = "firma_terminos"
	fieldWaiverSignature = "firma_deslinde"
)

// option is a select choice.
type option struct {
	Value string
	Label string
}

var (
	genderOptions = []option{
		{profile.GenderFemale, "Femenino"},
		{profile.GenderMale, "Masculino"},
		{profile.GenderOther, "Otro"},
		{profile.GenderUndisclosed, "Prefiero no decir"},
	}
	scheduleOptions = []option{
		{"manana", "Mañana (6:00 a 10:00)"},
		{"mediodia", "Mediodía (11:00 a 14:00)"},
		{"tarde", "Tarde (17:00 a 19:00)"},
		{"noche", "Noche (19:00 a 21:00)"},
	}
	heardFromOptions = []option{
		{"instagram", "Instagram"},
		{"facebook", "Facebook"},
		{"google", "Google"},
		{"recomendacion", "Recomendación"},
		{"volante", "Volante"},
		{"otro", "Otro"},
	}
	relationOptions = []option{
		{"madre", "Madre"},
		{"padre", "Padre"},
		{"pareja", "Pareja"},
		{"hermano", "Hermano(a)"},
		{"hijo", "Hijo(a)"},
		{"amigo", "Amigo(a)"},
		{"otro", "Otro"},
	}
	disciplineOptions = []option{
		{client.DisciplineCycling, client.DisciplineLabels[client.DisciplineCycling]},
		{client.DisciplineFunctional, client.DisciplineLabels[client.DisciplineFunctional]},
		{client.DisciplineBoth, client.DisciplineLabels[client.DisciplineBoth]},
	}
)

// handleRegistration serves the wizard. GET renders the draft's current
// step; POST applies one action and redirects back (post/redirect/get),
// leaving any failure in the draft's error slot.
func handleRegistration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		d, err := drafts.getOrCreate(w, r)
		if err != nil {
			internalError(w, err)
			return
		}
		d.mu.Lock()
		state := d.state
		results := checkResults(d)
		d.mu.Unlock()

		if err := renderWizard(w, r, state, results); err != nil {
			internalError(w, err)
			return
		}
		if state.IsDone() {
			drafts.discard(w, r)
		}

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		if r.FormValue("accion") == actionRestart {
			drafts.discard(w, r)
			http.Redirect(w, r, "/registro", http.StatusSeeOther)
			return
		}
		d, err := drafts.getOrCreate(w, r)
		if err != nil {
			internalError(w, err)
			return
		}

		d.mu.Lock()
		d.state = applyWizardAction(r, d, r.FormValue("accion"))
		d.mu.Unlock()

		http.Redirect(w, r, "/registro", http.StatusSeeOther)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// applyWizardAction merges the posted fields of the current step into the
// draft and runs one transition.
// PRE: d.mu held
func applyWizardAction(r *http.Request, d *draft, action string) registration.State {
	s := d.state
	if s.IsDone() {
		return s
	}
	s, err := registration.Update(s, postedFields(r, s))
	if err != nil {
		slog.Warn("registration_event", "event", "unknown_fields", "step", s.Step, "error", err)
	}
	if s.Step == registration.StepConsent {
		s = registration.SetSignature(s, consent.TypeTerms, r.PostFormValue(fieldTermsSignature))
		s = registration.SetSignature(s, consent.TypeWaiver, r.PostFormValue(fieldWaiverSignature))
	}

	switch action {
	case actionPrevious:
		return registration.Previous(s)
	case actionSubmit:
		deps := registerClientDeps()
		sub := orchestrators.NewClientSubmitter(clientIP(r), r.UserAgent(), deps)
		next, err := registration.Submit(r.Context(), s, sub)
		if err != nil {
			slog.Info("registration_failed", "step", s.Step, "error", err)
		}
		return next
	default:
		if s.Step == registration.StepIdentity {
			if msg := blockingCheck(d); msg != "" {
				s.Error = msg
				return s
			}
		}
		next, _ := registration.Next(s)
		return next
	}
}

// postedFields returns the current step's fields present in the form.
// Password inputs are never echoed back to the page, so an empty posted
// password keeps the stored one.
func postedFields(r *http.Request, s registration.State) map[string]string {
	values := make(map[string]string)
	for _, field := range registration.StepFields[s.Step] {
		if _, ok := r.PostForm[field]; !ok {
			continue
		}
		v := r.PostFormValue(field)
		if (field == registration.FieldPassword || field == registration.FieldConfirmPassword) && v == "" {
			continue
		}
		values[field] = v
	}
	return values
}

// blockingCheck returns the message of a settled check that forbids
// leaving the identity step.
// PRE: d.mu held
func blockingCheck(d *draft) string {
	for _, field := range []string{registration.FieldEmail, registration.FieldPhone} {
		c, ok := d.checks[field]
		if !ok {
			continue
		}
		if res := c.Result(); res.Outcome == availability.Taken {
			return res.Message
		}
	}
	return ""
}

// checkResults snapshots the draft's availability results by field.
// PRE: d.mu held
func checkResults(d *draft) map[string]availability.Result {
	out := make(map[string]availability.Result, len(d.checks))
	for field, c := range d.checks {
		out[field] = c.Result()
	}
	return out
}

func renderWizard(w http.ResponseWriter, r *http.Request, s registration.State, results map[string]availability.Result) error {
	data := map[string]any{
		"State":       s,
		"Form":        s.Form,
		"Step":        s.Step,
		"Total":       registration.TotalSteps,
		"Checks":      results,
		"Genders":     genderOptions,
		"Schedules":   scheduleOptions,
		"HeardFrom":   heardFromOptions,
		"Relations":   relationOptions,
		"Disciplines": disciplineOptions,
	}
	switch s.Step {
	case registration.StepIdentity:
		data["Strength"] = account.ScorePassword(s.Form.Password)
		data["HasPassword"] = s.Form.Password != ""
	case registration.StepConsent:
		docs, err := consent.Documents()
		if err != nil {
			return err
		}
		data["Documents"] = docs
		data["Signatures"] = map[string]string{
			string(consent.TypeTerms):  deref(s.TermsSignature),
			string(consent.TypeWaiver): deref(s.WaiverSignature),
		}
	}
	renderTemplate(w, r, "registro.html", data)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type availabilityRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type availabilityResponse struct {
	availability.Result
	Valid bool `json:"valid"`
}

// handleAvailability runs the debounced uniqueness check for the email or
// phone field of the caller's draft. A request overtaken by a newer one
// for the same field answers 409.
func handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req availabilityRequest
	if err := strictDecode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	d, ok := drafts.get(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no registration in progress"})
		return
	}
	checker, ok := d.checks[req.Field]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown field"})
		return
	}

	d.mu.Lock()
	enabled := d.state.Step == registration.StepIdentity
	d.mu.Unlock()

	value := req.Value
	if req.Field == registration.FieldPhone {
		value = registration.SanitizePhone(value)
	}

	res, err := checker.Check(r.Context(), value, enabled)
	switch {
	case errors.Is(err, availability.ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "superseded"})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away.
		return
	case err != nil:
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Result: res, Valid: res.IsValid()})
}

type strengthRequest struct {
	Password string `json:"password"`
}

type strengthResponse struct {
	Score     int    `json:"score"`
	Max       int    `json:"max"`
	Label     string `json:"label"`
	MinLength bool   `json:"min_length"`
}

// handlePasswordStrength scores a candidate password for the meter on the
// identity step.
func handlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req strengthRequest
	if err := strictDecode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	s := account.ScorePassword(req.Password)
	writeJSON(w, http.StatusOK, strengthResponse{
		Score:     s.Score,
		Max:       account.MaxStrength,
		Label:     s.Label,
		MinLength: s.MinLength,
	})
}

// clientIP is the remote host without port, stamped on signatures.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
