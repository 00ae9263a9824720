package access_test

import (
	"errors"
	"net/url"
	"testing"

	"studio/internal/domain/access"
)

func verified(role string) *access.Identity {
	return &access.Identity{
		PrincipalID:   "p-1",
		Email:         "ana@strive.mx",
		EmailVerified: true,
		HasProfile:    true,
		Role:          role,
		Active:        true,
	}
}

func TestDecide(t *testing.T) {
	cfg := access.DefaultConfig()

	unverified := verified("cliente")
	unverified.EmailVerified = false
	noProfile := verified("")
	noProfile.HasProfile = false
	inactive := verified("coach")
	inactive.Active = false
	unknownRole := verified("superuser")

	tests := []struct {
		name         string
		target       string
		id           *access.Identity
		lookupErr    error
		wantOutcome  access.Outcome
		wantLocation string
		wantReason   string
	}{
		{"static asset", "/static/app.css", nil, nil, access.Allow, "", access.ReasonExempt},
		{"metrics", "/metrics", nil, nil, access.Allow, "", access.ReasonExempt},
		{"anonymous home", "/", nil, nil, access.Allow, "", access.ReasonPublic},
		{"anonymous login", "/login", nil, nil, access.Allow, "", access.ReasonPublic},
		{"anonymous wizard sub-path", "/registro/paso", nil, nil, access.Allow, "", access.ReasonPublic},
		{"root entry is not a prefix", "/cliente", nil, nil, access.Redirect, "/login?redirect=%2Fcliente", access.ReasonAnonymous},
		{"anonymous protected keeps query", "/admin/usuarios?page=2", nil, nil, access.Redirect, "/login?redirect=%2Fadmin%2Fusuarios%3Fpage%3D2", access.ReasonAnonymous},
		{"lookup failure fails closed", "/coach", verified("coach"), errors.New("redis down"), access.Redirect, "/login?redirect=%2Fcoach", access.ReasonAnonymous},
		{"verified on login goes home", "/login", verified("staff"), nil, access.Redirect, "/staff", access.ReasonSignedInHome},
		{"verified on home goes home", "/", verified("cliente"), nil, access.Redirect, "/cliente", access.ReasonSignedInHome},
		{"verified on verification page", "/verificar-email", verified("cliente"), nil, access.Allow, "", access.ReasonPublic},
		{"verified on email confirmed", "/email-confirmado", verified("cliente"), nil, access.Allow, "", access.ReasonPublic},
		{"unverified on public page", "/registro", unverified, nil, access.Allow, "", access.ReasonPublic},
		{"unverified on protected", "/cliente", unverified, nil, access.Redirect, "/verificar-email", access.ReasonUnverified},
		{"unverified on disabled page", "/cuenta-desactivada", unverified, nil, access.Redirect, "/verificar-email", access.ReasonUnverified},
		{"no profile signs out", "/cliente", noProfile, nil, access.SignOutAndRedirect, "/login", access.ReasonNoProfile},
		{"no profile on public signs out", "/login", noProfile, nil, access.SignOutAndRedirect, "/login", access.ReasonNoProfile},
		{"unknown role signs out", "/admin", unknownRole, nil, access.SignOutAndRedirect, "/login", access.ReasonNoProfile},
		{"inactive redirected", "/coach", inactive, nil, access.Redirect, "/cuenta-desactivada", access.ReasonInactive},
		{"inactive in other area", "/admin", inactive, nil, access.Redirect, "/cuenta-desactivada", access.ReasonInactive},
		{"inactive on disabled page", "/cuenta-desactivada", inactive, nil, access.Allow, "", access.ReasonInactive},
		{"inactive on login", "/login", inactive, nil, access.Redirect, "/cuenta-desactivada", access.ReasonInactive},
		{"active on disabled page", "/cuenta-desactivada", verified("coach"), nil, access.Redirect, "/coach", access.ReasonWrongArea},
		{"coach in admin", "/admin/anything", verified("coach"), nil, access.Redirect, "/coach", access.ReasonWrongArea},
		{"coach in coach", "/coach/anything", verified("coach"), nil, access.Allow, "", access.ReasonAllowed},
		{"unrouted segment allowed", "/perfil", verified("cliente"), nil, access.Allow, "", access.ReasonAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := access.Decide(cfg, tt.target, tt.id, tt.lookupErr)
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %v, want %v", got.Outcome, tt.wantOutcome)
			}
			if got.Location != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got.Location, tt.wantLocation)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

// Every role hitting another role's area lands on its own dashboard.
func TestDecide_CrossAreaAlwaysRedirects(t *testing.T) {
	cfg := access.DefaultConfig()
	roles := []string{"admin", "coach", "staff", "cliente"}
	suffixes := []string{"", "/", "/x", "/x/y?z=1"}
	for _, own := range roles {
		for _, other := range roles {
			for _, suffix := range suffixes {
				target := "/" + other + suffix
				got := access.Decide(cfg, target, verified(own), nil)
				if own == other {
					if got.Outcome != access.Allow {
						t.Errorf("%s -> %s: %v, want allow", own, target, got.Outcome)
					}
					continue
				}
				if got.Outcome != access.Redirect || got.Location != "/"+own {
					t.Errorf("%s -> %s: %+v, want redirect to /%s", own, target, got, own)
				}
			}
		}
	}
}

// An anonymous request to any protected path carries the original target.
func TestDecide_AnonymousPreservesTarget(t *testing.T) {
	cfg := access.DefaultConfig()
	for _, target := range []string{"/admin", "/cliente/clases", "/perfil?tab=2", "/cuenta-desactivada"} {
		got := access.Decide(cfg, target, nil, nil)
		if got.Outcome != access.Redirect {
			t.Fatalf("%s: outcome %v", target, got.Outcome)
		}
		u, err := url.Parse(got.Location)
		if err != nil {
			t.Fatalf("%s: bad location %q", target, got.Location)
		}
		if u.Path != "/login" || u.Query().Get("redirect") != target {
			t.Errorf("%s: location %q", target, got.Location)
		}
	}
}

func TestDecide_CustomRoleSet(t *testing.T) {
	cfg := access.NewConfig(access.Settings{
		Routes:       map[string]string{"owner": "/owner", "guest": "/guest"},
		Public:       []string{"/entrar"},
		LoginPath:    "/entrar",
		VerifyPath:   "/verificar",
		DisabledPath: "/off",
	})
	if got := access.Decide(cfg, "/owner/x", verified("guest"), nil); got.Location != "/guest" {
		t.Errorf("guest in owner area: %+v", got)
	}
	// "admin" is not a routed role in this table.
	if got := access.Decide(cfg, "/admin", verified("guest"), nil); got.Outcome != access.Allow {
		t.Errorf("unrouted segment: %+v", got)
	}
	if got := access.Decide(cfg, "/owner", nil, nil); got.Location != "/entrar?redirect=%2Fowner" {
		t.Errorf("anonymous: %+v", got)
	}
}

func TestConfig_Immutable(t *testing.T) {
	s := access.Settings{
		Routes: map[string]string{"admin": "/admin"},
		Public: []string{"/login"},
	}
	cfg := access.NewConfig(s)
	s.Routes["admin"] = "/elsewhere"
	s.Public[0] = "/admin"
	if base, _ := cfg.Dashboard("admin"); base != "/admin" {
		t.Errorf("route mutated through settings: %q", base)
	}
	if cfg.IsPublic("/admin") {
		t.Error("public list mutated through settings")
	}
}

func TestConfig_SafeReturnTarget(t *testing.T) {
	cfg := access.DefaultConfig()
	tests := map[string]bool{
		"/cliente":             true,
		"/admin/x?y=1":         true,
		"":                     false,
		"cliente":              false,
		"//evil.example":       false,
		"/\\evil.example":      false,
		"https://evil.example": false,
		"/login":               false,
		"/login?redirect=/x":   false,
	}
	for target, want := range tests {
		if got := cfg.SafeReturnTarget(target); got != want {
			t.Errorf("SafeReturnTarget(%q) = %v, want %v", target, got, want)
		}
	}
}

func TestFirstSegment(t *testing.T) {
	tests := map[string]string{
		"/":            "",
		"/admin":       "admin",
		"/admin/":      "admin",
		"/cliente/a/b": "cliente",
		"":             "",
	}
	for in, want := range tests {
		if got := access.FirstSegment(in); got != want {
			t.Errorf("FirstSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
