// Package access decides, for every inbound request, whether the caller may
// proceed or must be redirected. The decision is a pure function of an
// injected Config, the requested path and the caller's Identity.
package access

import (
	"net/url"
	"strings"

	"studio/internal/domain/profile"
)

// Default paths of the public site.
const (
	PathHome             = "/"
	PathLogin            = "/login"
	PathRegister         = "/registro"
	PathRecoverPassword  = "/recuperar-password"
	PathVerifyEmail      = "/verificar-email"
	PathEmailConfirmed   = "/email-confirmado"
	PathAccountDisabled  = "/cuenta-desactivada"
	DefaultReturnToParam = "redirect"
)

// Settings is the mutable input to NewConfig.
type Settings struct {
	// Routes maps a role name to its base path ("/admin", ...).
	Routes map[string]string
	// Public paths bypass the gate for anonymous callers.
	Public []string
	// Verification paths stay reachable for every caller, including
	// authenticated and verified ones.
	Verification []string
	// Exempt prefixes are never gated (assets, health, metrics, logout).
	Exempt []string

	LoginPath     string
	VerifyPath    string
	DisabledPath  string
	ReturnToParam string
}

// Config is the immutable gate configuration. The zero value gates
// everything and routes nobody; build one with NewConfig or DefaultConfig.
type Config struct {
	routes        map[string]string
	public        []string
	verification  []string
	exempt        []string
	loginPath     string
	verifyPath    string
	disabledPath  string
	returnToParam string
}

// NewConfig copies s into an immutable Config.
func NewConfig(s Settings) Config {
	routes := make(map[string]string, len(s.Routes))
	for role, base := range s.Routes {
		routes[role] = base
	}
	returnTo := s.ReturnToParam
	if returnTo == "" {
		returnTo = DefaultReturnToParam
	}
	return Config{
		routes:        routes,
		public:        append([]string(nil), s.Public...),
		verification:  append([]string(nil), s.Verification...),
		exempt:        append([]string(nil), s.Exempt...),
		loginPath:     s.LoginPath,
		verifyPath:    s.VerifyPath,
		disabledPath:  s.DisabledPath,
		returnToParam: returnTo,
	}
}

// DefaultConfig is the studio's route table: one area per role, named
// after the role.
func DefaultConfig() Config {
	return NewConfig(Settings{
		Routes: map[string]string{
			profile.RoleAdmin:  "/" + profile.RoleAdmin,
			profile.RoleCoach:  "/" + profile.RoleCoach,
			profile.RoleStaff:  "/" + profile.RoleStaff,
			profile.RoleClient: "/" + profile.RoleClient,
		},
		Public: []string{
			PathHome, PathLogin, PathRegister, PathRecoverPassword,
			PathVerifyEmail, PathEmailConfirmed,
		},
		Verification: []string{PathVerifyEmail, PathEmailConfirmed},
		Exempt:       []string{"/static/", "/metrics", "/healthz", "/logout"},
		LoginPath:    PathLogin,
		VerifyPath:   PathVerifyEmail,
		DisabledPath: PathAccountDisabled,
	})
}

// LoginPath returns the login page path.
func (c Config) LoginPath() string { return c.loginPath }

// VerifyPath returns the email verification waiting page path.
func (c Config) VerifyPath() string { return c.verifyPath }

// DisabledPath returns the account disabled page path.
func (c Config) DisabledPath() string { return c.disabledPath }

// ReturnToParam returns the query key carrying the post-login target.
func (c Config) ReturnToParam() string { return c.returnToParam }

// Dashboard returns the base path of role's area.
func (c Config) Dashboard(role string) (string, bool) {
	base, ok := c.routes[role]
	return base, ok
}

// IsRoleSegment reports whether seg names a routed role.
func (c Config) IsRoleSegment(seg string) bool {
	_, ok := c.routes[seg]
	return ok
}

// IsPublic reports whether path is on the public allow-list: an exact
// entry, or below a non-root entry.
func (c Config) IsPublic(path string) bool {
	return matchAny(c.public, path)
}

// IsVerification reports whether path is one of the verification pages.
func (c Config) IsVerification(path string) bool {
	return matchAny(c.verification, path)
}

// IsExempt reports whether path is never gated.
func (c Config) IsExempt(path string) bool {
	for _, prefix := range c.exempt {
		if path == prefix || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// LoginURL returns the login path carrying returnTo as the post-login
// target. An empty returnTo yields the bare login path.
func (c Config) LoginURL(returnTo string) string {
	if returnTo == "" || returnTo == c.loginPath {
		return c.loginPath
	}
	return c.loginPath + "?" + url.Values{c.returnToParam: {returnTo}}.Encode()
}

// SafeReturnTarget reports whether target may be used as a post-login
// redirect: a local absolute path that does not lead back to login.
func (c Config) SafeReturnTarget(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return false
	}
	return u.Path != c.loginPath
}

func matchAny(entries []string, path string) bool {
	for _, p := range entries {
		if path == p {
			return true
		}
		if p != "/" && strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// FirstSegment returns the first element of an absolute path.
func FirstSegment(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return seg
}
