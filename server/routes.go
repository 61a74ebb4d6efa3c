package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/speakwise-web/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// SIGN IN / SIGN UP / LOGOUT
	s.RegisterRouteHandler("GET "+RouteSignIn, ChainMiddleware(s.SignInPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthSignIn, ChainMiddleware(s.SignInSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSignUp, ChainMiddleware(s.SignUpPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthSignUp, ChainMiddleware(s.SignUpSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	// Logout changes state, so a cross-site link or image must not trigger it.
	s.RegisterRouteHandler(RouteAuthLogout, ChainMiddleware(s.MethodNotAllowedHandler(http.MethodPost), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))

	// Guarded pages
	anyUser := Guard{}
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler("Dashboard"), s.HTMLMiddleWare(s.RequireSession(anyUser))...))
	s.RegisterRouteHandler("GET "+RouteSpeakerDashboard, ChainMiddleware(s.DashboardHandler("Speaker dashboard"),
		s.HTMLMiddleWare(s.RequireSession(Guard{Roles: []users.RoleType{users.RoleSpeaker}, Mode: DenyRedirect}))...))
	s.RegisterRouteHandler("GET "+RouteOrganizerDashboard, ChainMiddleware(s.DashboardHandler("Organizer dashboard"),
		s.HTMLMiddleWare(s.RequireSession(Guard{Roles: []users.RoleType{users.RoleOrganizer}, Mode: DenyRedirect}))...))
	s.RegisterRouteHandler("GET "+RouteProfileComplete, ChainMiddleware(s.ProfileCompleteHandler(), s.HTMLMiddleWare(s.RequireSession(anyUser))...))
	s.RegisterRouteHandler("GET "+RouteAdmin, ChainMiddleware(s.DashboardHandler("Administration"),
		s.HTMLMiddleWare(s.RequireSession(Guard{Roles: []users.RoleType{users.RoleAdmin}, Mode: DenyExplain}))...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))
	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundHandler(), s.HTMLMiddleWare()...))
}

// MethodNotAllowedHandler answers 405 listing the allowed methods
func (s *Server) MethodNotAllowedHandler(allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		http.Error(w, "405 - Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 - Page Not Found", http.StatusNotFound)
	}
}
