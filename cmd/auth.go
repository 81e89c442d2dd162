package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/notify"
	"github.com/desertthunder/catx/internal/shared"
	"github.com/urfave/cli/v3"
)

// sessionStatus is the JSON shape of `auth status`.
type sessionStatus struct {
	Authenticated bool         `json:"authenticated"`
	ValidToken    bool         `json:"validToken"`
	User          *models.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
}

// AuthLogin exchanges credentials for a session and persists it in the credential store.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	creds := models.Credentials{Username: cmd.String("username"), Password: cmd.String("password")}
	if creds.Password == "" {
		return fmt.Errorf("%w: --password or CATX_PASSWORD is required", shared.ErrMissingArgument)
	}

	r.logger.Info("logging in", "username", creds.Username, "api", r.config.API.BaseURL)

	session, err := r.manager.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, notify.FromError(err))
	}

	return r.writePlain("✓ Logged in as %s\n", displayName(session))
}

// AuthRegister creates an account and stores the resulting session.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	reg := models.Registration{
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Password: cmd.String("password"),
		Fullname: cmd.String("fullname"),
	}
	if reg.Password == "" {
		return fmt.Errorf("%w: --password or CATX_PASSWORD is required", shared.ErrMissingArgument)
	}

	session, err := r.manager.Register(ctx, reg)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, notify.FromError(err))
	}

	return r.writePlain("✓ Registered and logged in as %s\n", displayName(session))
}

// AuthAvailable reports whether a username and/or email can still be registered.
func (r *Runner) AuthAvailable(ctx context.Context, cmd *cli.Command) error {
	username := cmd.String("username")
	email := cmd.String("email")
	if username == "" && email == "" {
		return fmt.Errorf("%w: either --username or --email must be provided", shared.ErrMissingArgument)
	}

	if err := r.init(); err != nil {
		return err
	}

	if username != "" {
		ok, err := r.authClient.UsernameAvailable(ctx, username)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		r.writePlain("username %-20s %s\n", username, availability(ok))
	}
	if email != "" {
		ok, err := r.authClient.EmailAvailable(ctx, email)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		r.writePlain("email    %-20s %s\n", email, availability(ok))
	}
	return nil
}

// AuthRefresh renews the stored session. A failed refresh ends the session.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	session, err := r.manager.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrRefreshFailed, notify.FromError(err))
	}

	r.writePlain("✓ Session refreshed for %s\n", displayName(session))
	if !session.Token.Expiry.IsZero() {
		r.writePlain("Expires at: %s\n", session.Token.Expiry.Local().Format(time.RFC1123))
	}
	return nil
}

// AuthLogout clears the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	if !r.manager.IsAuthenticatedSync() {
		return r.writePlain("Not logged in\n")
	}
	r.manager.Logout()
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus shows the stored session without contacting the backend.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	status := sessionStatus{
		Authenticated: r.manager.IsAuthenticated(),
		ValidToken:    r.manager.HasValidToken(),
		User:          r.manager.CurrentUser(),
	}
	if token := r.manager.OAuth2Token(); token != nil && !token.Expiry.IsZero() {
		status.ExpiresAt = &token.Expiry
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Session")
	if !status.Authenticated {
		r.writePlain("✗ Not logged in\n")
		return r.writePlain("Run 'catx auth login --username <name>' to sign in\n")
	}

	if status.User != nil {
		r.writePlain("User:    %s\n", status.User.Username)
		if status.User.Fullname != "" {
			r.writePlain("Name:    %s\n", status.User.Fullname)
		}
		if status.User.Email != "" {
			r.writePlain("Email:   %s\n", status.User.Email)
		}
	}
	if status.ExpiresAt != nil {
		r.writePlain("Expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}
	if status.ValidToken {
		return r.writePlain("✓ Access token valid\n")
	}
	return r.writePlain("⚠ Access token expired, it will be refreshed on the next request\n")
}

func displayName(s *auth.Session) string {
	if s == nil || s.User == nil || s.User.Username == "" {
		return "unknown user"
	}
	return s.User.Username
}

func availability(ok bool) string {
	if ok {
		return "✓ available"
	}
	return "✗ taken"
}
