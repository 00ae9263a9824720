package access

import "strings"

// Identity is what the session lookup knows about the caller. A nil
// *Identity means no principal.
type Identity struct {
	PrincipalID   string
	Email         string
	EmailVerified bool

	// HasProfile is false when the principal has no profile row.
	HasProfile bool
	Role       string
	Active     bool

	// PasswordChangeRequired is not consulted by Decide; the dashboards
	// send such a caller to the change-password page.
	PasswordChangeRequired bool
}

// Outcome is the kind of gate decision.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	SignOutAndRedirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case SignOutAndRedirect:
		return "sign_out"
	}
	return "unknown"
}

// Reasons, used as log fields and metric labels.
const (
	ReasonExempt       = "exempt"
	ReasonPublic       = "public"
	ReasonSignedInHome = "signed_in_public"
	ReasonAnonymous    = "anonymous"
	ReasonUnverified   = "unverified"
	ReasonNoProfile    = "no_profile"
	ReasonInactive     = "inactive"
	ReasonWrongArea    = "wrong_area"
	ReasonAllowed      = "allowed"
)

// Decision is the gate verdict for one request.
type Decision struct {
	Outcome  Outcome
	Location string
	Reason   string
}

func allow(reason string) Decision {
	return Decision{Outcome: Allow, Reason: reason}
}

func redirect(location, reason string) Decision {
	return Decision{Outcome: Redirect, Location: location, Reason: reason}
}

// Decide gates a request for target (a request URI: path plus optional
// query). id is the caller, nil when anonymous. A non-nil lookupErr means
// the session could not be resolved and the caller is treated as
// anonymous.
func Decide(cfg Config, target string, id *Identity, lookupErr error) Decision {
	path, _, _ := strings.Cut(target, "?")
	if path == "" {
		path = "/"
	}
	if cfg.IsExempt(path) {
		return allow(ReasonExempt)
	}
	if lookupErr != nil {
		id = nil
	}

	if cfg.IsPublic(path) {
		if id == nil || !id.EmailVerified || cfg.IsVerification(path) {
			return allow(ReasonPublic)
		}
		// A signed-in, verified caller has no business on the marketing
		// and login pages.
		d := decideSignedIn(cfg, path, id)
		if d.Outcome == Allow {
			base, _ := cfg.Dashboard(id.Role)
			return redirect(base, ReasonSignedInHome)
		}
		return d
	}

	if id == nil {
		return redirect(cfg.LoginURL(target), ReasonAnonymous)
	}
	if !id.EmailVerified {
		if path == cfg.VerifyPath() {
			return allow(ReasonAllowed)
		}
		return redirect(cfg.VerifyPath(), ReasonUnverified)
	}
	return decideSignedIn(cfg, path, id)
}

// decideSignedIn handles a verified principal outside the public pages.
func decideSignedIn(cfg Config, path string, id *Identity) Decision {
	base, routed := cfg.Dashboard(id.Role)
	if !id.HasProfile || !routed {
		return Decision{Outcome: SignOutAndRedirect, Location: cfg.LoginPath(), Reason: ReasonNoProfile}
	}
	if !id.Active {
		if path == cfg.DisabledPath() {
			return allow(ReasonInactive)
		}
		return redirect(cfg.DisabledPath(), ReasonInactive)
	}
	if path == cfg.DisabledPath() {
		return redirect(base, ReasonWrongArea)
	}
	if seg := FirstSegment(path); cfg.IsRoleSegment(seg) && seg != id.Role {
		return redirect(base, ReasonWrongArea)
	}
	return allow(ReasonAllowed)
}
