package session

import (
	"net/url"

	"github.com/jrsteele09/speakwise-web/users"
)

// Route path constants of the web front the session layer redirects to
const (
	RouteHome               = "/"
	RouteSignIn             = "/signin"
	RouteDashboard          = "/dashboard"
	RouteSpeakerDashboard   = "/dashboard/speaker"
	RouteOrganizerDashboard = "/dashboard/organizer"
	RouteProfileComplete    = "/profile/complete"
)

// DashboardFor returns the landing page of role.
func DashboardFor(role users.RoleType) string {
	switch role {
	case users.RoleSpeaker:
		return RouteSpeakerDashboard
	case users.RoleOrganizer:
		return RouteOrganizerDashboard
	default:
		return RouteDashboard
	}
}

// SignInURL is the sign-in route with an optional reason, e.g. ("session", "expired").
func SignInURL(key, value string) string {
	if key == "" {
		return RouteSignIn
	}
	return RouteSignIn + "?" + url.Values{key: {value}}.Encode()
}

// SessionExpiredURL is where a failed refresh sends the user.
var SessionExpiredURL = SignInURL("session", "expired")
