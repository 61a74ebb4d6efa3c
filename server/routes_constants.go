package server

import "github.com/jrsteele09/speakwise-web/session"

// Route path constants
// Pages the session layer redirects to are defined in the session package
const (
	RouteHome               = session.RouteHome
	RouteSignIn             = session.RouteSignIn
	RouteDashboard          = session.RouteDashboard
	RouteSpeakerDashboard   = session.RouteSpeakerDashboard
	RouteOrganizerDashboard = session.RouteOrganizerDashboard
	RouteProfileComplete    = session.RouteProfileComplete

	// Auth Routes
	RouteSignUp       = "/signup"
	RouteAuthSignIn   = "/auth/signin"
	RouteAuthSignUp   = "/auth/signup"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthCallback = "/auth/callback"

	// Admin Routes
	RouteAdmin = "/admin"

	// API Routes
	RouteAPISession = "/api/session"
	RouteMetrics    = "/metrics"
)
