package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/speakwise-web/backend"
	"github.com/jrsteele09/speakwise-web/internal/config"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func loginCmd(getConfig func() config.Config) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedRole, err := users.ParseRole(role)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if email == "" {
				if email, err = promptLine(bufio.NewReader(cmd.InOrStdin()), out, "Email"); err != nil {
					return err
				}
			}
			password, err := promptPassword(out, "Password")
			if err != nil {
				return err
			}

			a := newApp(getConfig(), nil)
			defer a.scheduler.Stop()

			ctx, cancel := requestContext(cmd.Context(), a)
			defer cancel()

			nav, err := a.manager.Login(ctx, email, password, parsedRole)
			if err != nil {
				return fmt.Errorf("%s", backend.UserMessage(err))
			}
			st := a.manager.State()
			fmt.Fprintf(out, "Signed in as %s (%s). Web landing page: %s\n", st.User.DisplayName(), st.Role(), nav.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&role, "role", "r", string(users.RoleAttendee), "role to sign in as (attendee, speaker, organizer, admin)")
	return cmd
}

func logoutCmd(getConfig func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(getConfig(), nil)
			a.manager.Bootstrap()
			if !a.manager.State().IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			ctx, cancel := requestContext(cmd.Context(), a)
			defer cancel()

			a.manager.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func whoamiCmd(getConfig func() config.Config) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(getConfig(), nil)
			defer a.scheduler.Stop()

			a.manager.Bootstrap()
			st := a.manager.State()
			out := cmd.OutOrStdout()
			if !st.IsAuthenticated() {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}

			if !offline {
				ctx, cancel := requestContext(cmd.Context(), a)
				defer cancel()
				if err := a.manager.RefreshProfile(ctx); err != nil {
					log.Warn().Err(err).Msg("Could not refresh profile, showing cached user")
				}
				st = a.manager.State()
			}
			printUser(out, st.User)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "show the cached user without calling the backend")
	return cmd
}

func registerCmd(getConfig func() config.Config) *cobra.Command {
	var req users.RegistrationRequest
	var role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a SpeakWise account",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var err error
			if req.Role, err = users.ParseRole(role); err != nil {
				return err
			}
			if req.Password, err = promptPassword(out, "Password"); err != nil {
				return err
			}
			if req.PasswordConfirm, err = promptPassword(out, "Confirm password"); err != nil {
				return err
			}

			a := newApp(getConfig(), nil)
			ctx, cancel := requestContext(cmd.Context(), a)
			defer cancel()

			if err := a.manager.Register(ctx, req); err != nil {
				return fmt.Errorf("%s", backend.UserMessage(err))
			}
			fmt.Fprintf(out, "Account created. Sign in with: speakwise login --email %s --role %s\n", req.Email, req.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&req.Organization, "organization", "", "organization (optional)")
	cmd.Flags().StringVarP(&role, "role", "r", string(users.RoleAttendee), "account role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}

// requestContext bounds a backend call by the configured request timeout
func requestContext(parent context.Context, a *app) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, a.config.GetRequestTimeout())
}

func printUser(w io.Writer, user *users.Summary) {
	if user == nil {
		fmt.Fprintln(w, "Signed in (no profile cached).")
		return
	}
	fmt.Fprintf(w, "Name:  %s\n", user.DisplayName())
	fmt.Fprintf(w, "Email: %s\n", user.Email)
	fmt.Fprintf(w, "Role:  %s\n", user.Role)
	if user.ID != "" {
		fmt.Fprintf(w, "ID:    %s\n", user.ID)
	}
}
