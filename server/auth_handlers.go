package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/speakwise-web/backend"
	"github.com/jrsteele09/speakwise-web/session"
	"github.com/jrsteele09/speakwise-web/users"
)

// signInReasons turns the codes other flows append to /signin into text
var signInReasons = map[string]string{
	"access_denied":    "Sign-in with your provider was cancelled.",
	"missing_token":    "Sign-in did not complete. Please try again.",
	"invalid_id_token": "Sign-in could not be verified. Please try again.",
}

// SignInPageHandler displays the sign-in form (GET /signin)
func (s *Server) SignInPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		data := pageData{
			Title: "Sign in",
			Email: q.Get("email"),
			Roles: users.Roles,
			Role:  users.RoleAttendee,
		}
		if role, err := users.ParseRole(q.Get("role")); err == nil {
			data.Role = role
		}
		if errorMsg := q.Get("error"); errorMsg != "" {
			data.Error = errorMsg
			if reason, ok := signInReasons[errorMsg]; ok {
				data.Error = reason
			}
		}
		switch {
		case q.Get("session") == "expired":
			data.Notice = "Your session has expired. Please sign in again."
		case q.Get("registered") != "":
			data.Notice = "Your account has been created. Please sign in."
		}

		s.render(w, r, http.StatusOK, "signin.html", data)
	}
}

// SignInSubmissionHandler processes the sign-in form (POST /auth/signin)
func (s *Server) SignInSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")
		role, err := users.ParseRole(r.FormValue("role"))
		if err != nil {
			redirectWithForm(w, r, RouteSignIn, "Please choose a role to sign in as", email)
			return
		}
		if email == "" || password == "" {
			redirectWithForm(w, r, RouteSignIn, "Email and password are required", email)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetRequestTimeout())
		defer cancel()

		nav, err := s.session.Login(ctx, email, password, role)
		if err != nil {
			redirectWithForm(w, r, RouteSignIn, backend.UserMessage(err), email)
			return
		}
		redirectSuccess(w, r, nav.Path)
	}
}

// SignUpPageHandler displays the registration form (GET /signup)
func (s *Server) SignUpPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data := pageData{
			Title: "Sign up",
			Email: q.Get("email"),
			Error: q.Get("error"),
			Roles: users.Roles,
			Role:  users.RoleAttendee,
		}
		if role, err := users.ParseRole(q.Get("role")); err == nil {
			data.Role = role
		}
		s.render(w, r, http.StatusOK, "signup.html", data)
	}
}

// SignUpSubmissionHandler creates the account and sends the user to sign in.
// Registration never signs the user in.
func (s *Server) SignUpSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		req := users.RegistrationRequest{
			Email:           strings.TrimSpace(r.FormValue("email")),
			Password:        r.FormValue("password"),
			PasswordConfirm: r.FormValue("password2"),
			FirstName:       strings.TrimSpace(r.FormValue("first_name")),
			LastName:        strings.TrimSpace(r.FormValue("last_name")),
			Role:            users.RoleType(strings.ToLower(r.FormValue("role"))),
			Organization:    strings.TrimSpace(r.FormValue("organization")),
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetRequestTimeout())
		defer cancel()

		if err := s.session.Register(ctx, req); err != nil {
			redirectWithForm(w, r, RouteSignUp, backend.UserMessage(err), req.Email)
			return
		}

		target := session.SignInURL("registered", "1") + "&" + url.Values{"email": {req.Email}, "role": {string(req.Role)}}.Encode()
		redirectSuccess(w, r, target)
	}
}

// LogoutHandler ends the session; backend failures never keep the user signed in
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetRequestTimeout())
		defer cancel()

		nav := s.session.Logout(ctx)
		redirectSuccess(w, r, nav.Path)
	}
}

// redirectWithForm sends the user back to a form with an error and the email they typed
func redirectWithForm(w http.ResponseWriter, r *http.Request, path, errorMsg, email string) {
	q := url.Values{"error": {errorMsg}}
	if email != "" {
		q.Set("email", email)
	}
	if role := r.FormValue("role"); role != "" {
		q.Set("role", role)
	}
	redirectSuccess(w, r, path+"?"+q.Encode())
}
