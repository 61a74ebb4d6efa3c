package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/speakwise-web/oauthcallback"
	"github.com/jrsteele09/speakwise-web/session"
	"github.com/rs/zerolog"
)

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.session.State()
		data := pageData{Title: s.config.GetAppName(), Authenticated: st.IsAuthenticated(), User: st.User}
		s.render(w, r, http.StatusOK, "index.html", data)
	}
}

// DashboardHandler renders a guarded landing page titled title
func (s *Server) DashboardHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "dashboard.html", pageData{Title: title, User: s.session.State().User})
	}
}

func (s *Server) ProfileCompleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "profile_complete.html", pageData{
			Title: "Complete your profile",
			User:  s.session.State().User,
		})
	}
}

type sessionResponse struct {
	session.State
	Authenticated bool `json:"authenticated"`
}

// SessionStateHandler returns the published session state as JSON
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.session.State()
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(sessionResponse{State: st, Authenticated: st.IsAuthenticated()}); err != nil {
			zerolog.Ctx(r.Context()).Err(err).Msg("Failed to encode session state")
		}
	}
}

// OAuthCallbackHandler consumes the identity provider redirect. The outcome
// message is shown for the configured delay before a full navigation; on
// success the session is reloaded from the freshly written credentials first.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := s.callback.NewCallback(oauthcallback.ParamsFromQuery(r.URL.Query())).Run(r.Context())

		if result.Redirect.FullReload && !result.Failed() {
			s.session.Reload()
		}

		delay := int(result.Delay / time.Second)
		data := pageData{
			Title:        "Signing in",
			User:         result.User,
			Message:      result.Message,
			RefreshAfter: delay,
			RefreshTo:    result.Redirect.Path,
		}
		if result.Failed() {
			data.Title = "Sign-in failed"
			data.Error = result.Message
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", delay, result.Redirect.Path))
		s.render(w, r, http.StatusOK, "callback.html", data)
	}
}
