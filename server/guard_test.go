package server_test

import (
	"testing"

	"github.com/jrsteele09/speakwise-web/server"
	"github.com/jrsteele09/speakwise-web/session"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/stretchr/testify/require"
)

func authenticatedAs(role users.RoleType) session.State {
	return session.State{Status: session.StatusAuthenticated, User: &users.Summary{FirstName: "Sam", Role: role}}
}

// TestGuard_Evaluate tests every branch of the guard decision
func TestGuard_Evaluate(t *testing.T) {
	speakerOnly := server.Guard{Roles: []users.RoleType{users.RoleSpeaker}, Mode: server.DenyRedirect}
	adminExplain := server.Guard{Roles: []users.RoleType{users.RoleAdmin}, Mode: server.DenyExplain}

	tests := []struct {
		name  string
		guard server.Guard
		state session.State
		path  string
		want  server.Decision
	}{
		{
			name:  "unknown shows loading",
			state: session.State{Status: session.StatusUnknown},
			path:  "/dashboard",
			want:  server.Decision{Kind: server.DecisionLoading},
		},
		{
			name:  "loading shows loading",
			guard: speakerOnly,
			state: session.State{Status: session.StatusLoading},
			path:  "/dashboard/speaker",
			want:  server.Decision{Kind: server.DecisionLoading},
		},
		{
			name:  "unauthenticated remembers the path",
			state: session.State{Status: session.StatusUnauthenticated},
			path:  "/dashboard",
			want:  server.Decision{Kind: server.DecisionSignIn, Location: "/signin", RememberPath: "/dashboard"},
		},
		{
			name:  "query string is remembered",
			state: session.State{Status: session.StatusUnauthenticated},
			path:  "/dashboard?tab=talks",
			want:  server.Decision{Kind: server.DecisionSignIn, Location: "/signin", RememberPath: "/dashboard?tab=talks"},
		},
		{
			name:  "sign-in page is never remembered",
			state: session.State{Status: session.StatusUnauthenticated},
			path:  "/signin",
			want:  server.Decision{Kind: server.DecisionSignIn, Location: "/signin"},
		},
		{
			name:  "expired session carries the reason",
			state: session.State{Status: session.StatusUnauthenticated, Expired: true},
			path:  "/profile/complete",
			want:  server.Decision{Kind: server.DecisionSignIn, Location: "/signin?session=expired", RememberPath: "/profile/complete"},
		},
		{
			name:  "any authenticated user",
			state: authenticatedAs(users.RoleAttendee),
			path:  "/dashboard",
			want:  server.Decision{Kind: server.DecisionAllow},
		},
		{
			name:  "role permitted",
			guard: speakerOnly,
			state: authenticatedAs(users.RoleSpeaker),
			path:  "/dashboard/speaker",
			want:  server.Decision{Kind: server.DecisionAllow},
		},
		{
			name:  "role mismatch redirects silently",
			guard: speakerOnly,
			state: authenticatedAs(users.RoleOrganizer),
			path:  "/dashboard/speaker",
			want:  server.Decision{Kind: server.DecisionRedirect, Location: "/dashboard"},
		},
		{
			name:  "redirect to the same page explains instead",
			guard: speakerOnly,
			state: authenticatedAs(users.RoleOrganizer),
			path:  "/dashboard",
			want:  server.Decision{Kind: server.DecisionForbidden, Required: []users.RoleType{users.RoleSpeaker}, Actual: users.RoleOrganizer},
		},
		{
			name:  "redirect to the same page with a query explains instead",
			guard: speakerOnly,
			state: authenticatedAs(users.RoleOrganizer),
			path:  "/dashboard?tab=talks",
			want:  server.Decision{Kind: server.DecisionForbidden, Required: []users.RoleType{users.RoleSpeaker}, Actual: users.RoleOrganizer},
		},
		{
			name:  "explain mode names both roles",
			guard: adminExplain,
			state: authenticatedAs(users.RoleSpeaker),
			path:  "/admin",
			want:  server.Decision{Kind: server.DecisionForbidden, Required: []users.RoleType{users.RoleAdmin}, Actual: users.RoleSpeaker},
		},
		{
			name:  "authenticated without a cached user fails role checks",
			guard: adminExplain,
			state: session.State{Status: session.StatusAuthenticated},
			path:  "/admin",
			want:  server.Decision{Kind: server.DecisionForbidden, Required: []users.RoleType{users.RoleAdmin}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.guard.Evaluate(tt.state, tt.path))
		})
	}
}

// TestGuard_EvaluateIsStable tests that evaluating the same state twice gives the same answer
func TestGuard_EvaluateIsStable(t *testing.T) {
	g := server.Guard{Roles: []users.RoleType{users.RoleOrganizer}}
	st := authenticatedAs(users.RoleSpeaker)

	first := g.Evaluate(st, "/dashboard/organizer")
	second := g.Evaluate(st, "/dashboard/organizer")
	require.Equal(t, first, second)

	// Following the redirect does not bounce again.
	next := server.Guard{}.Evaluate(st, first.Location)
	require.Equal(t, server.DecisionAllow, next.Kind)
}
