package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/speakwise-web/session"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog"
)

// DenialMode selects what an authenticated user without the required role sees
type DenialMode int

const (
	// DenyRedirect silently sends the user to the generic dashboard
	DenyRedirect DenialMode = iota
	// DenyExplain renders a 403 page naming the required and actual roles
	DenyExplain
)

// DecisionKind is the outcome of evaluating a guard
type DecisionKind int

const (
	DecisionLoading DecisionKind = iota
	DecisionSignIn
	DecisionRedirect
	DecisionForbidden
	DecisionAllow
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionLoading:
		return "loading"
	case DecisionSignIn:
		return "signin"
	case DecisionRedirect:
		return "redirect"
	case DecisionForbidden:
		return "forbidden"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision says what to do with a request to a guarded route
type Decision struct {
	Kind         DecisionKind
	Location     string           // redirect target for DecisionSignIn and DecisionRedirect
	RememberPath string           // path login should return to, set with DecisionSignIn
	Required     []users.RoleType // set with DecisionForbidden
	Actual       users.RoleType   // set with DecisionForbidden
}

// Guard protects a route. An empty Roles list admits any authenticated user.
type Guard struct {
	Roles []users.RoleType
	Mode  DenialMode
}

// Evaluate decides the fate of a request to target (path and query) given
// the session state. It has no side effects.
func (g Guard) Evaluate(st session.State, target string) Decision {
	if !st.Resolved() {
		return Decision{Kind: DecisionLoading}
	}

	if !st.IsAuthenticated() {
		d := Decision{Kind: DecisionSignIn, Location: session.RouteSignIn}
		if st.Expired {
			d.Location = session.SessionExpiredURL
		}
		if !isSignInPath(target) {
			d.RememberPath = target
		}
		return d
	}

	if !st.User.HasRole(g.Roles...) {
		path, _, _ := strings.Cut(target, "?")
		if g.Mode == DenyRedirect && path != session.RouteDashboard {
			return Decision{Kind: DecisionRedirect, Location: session.RouteDashboard}
		}
		// Redirecting to the page we are on would loop, so explain instead.
		return Decision{Kind: DecisionForbidden, Required: g.Roles, Actual: st.Role()}
	}

	return Decision{Kind: DecisionAllow}
}

func isSignInPath(path string) bool {
	return path == session.RouteSignIn || strings.HasPrefix(path, session.RouteSignIn+"?")
}

// RequireSession gates next behind g using the Manager's current state
func (s *Server) RequireSession(g Guard) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			st := s.session.State()
			d := g.Evaluate(st, r.URL.RequestURI())
			s.metrics.GuardDecision(d.Kind.String())

			switch d.Kind {
			case DecisionLoading:
				w.Header().Set("Cache-Control", "no-store")
				s.render(w, r, http.StatusOK, "loading.html", pageData{Title: "Loading", RefreshAfter: 1, RefreshTo: r.URL.RequestURI()})
			case DecisionSignIn:
				if d.RememberPath != "" {
					s.session.RememberRedirect(d.RememberPath)
				}
				redirectSuccess(w, r, d.Location)
			case DecisionRedirect:
				redirectSuccess(w, r, d.Location)
			case DecisionForbidden:
				zerolog.Ctx(r.Context()).Info().
					Str("path", r.URL.Path).
					Str("role", string(d.Actual)).
					Msg("Access denied")
				s.render(w, r, http.StatusForbidden, "forbidden.html", pageData{
					Title:    "Access denied",
					User:     st.User,
					Required: d.Required,
					Actual:   d.Actual,
				})
			default:
				next(w, r)
			}
		}
	}
}
