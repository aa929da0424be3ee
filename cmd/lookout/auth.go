package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/auth"
	"github.com/musher-dev/lookout/internal/client"
	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/output"
	"github.com/musher-dev/lookout/internal/prompt"
	"github.com/musher-dev/lookout/internal/session"
)

const (
	loginMethodToken    = "Paste a bearer token"
	loginMethodPassword = "Sign in with username and password"
	loginMethodNoAuth   = "The backend has authentication disabled"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long: `Store, inspect and clear the bearer token sent to the backend.

A backend may run without authentication. 'lookout auth disable' records
that, after which no Authorization header is sent.`,
		Example: `  lookout auth login
  lookout auth status
  lookout auth logout`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthDisableCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		tokenFlag string
		username  string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token",
		Long: `Authenticate with the prediction backend.

The token is stored securely in your system's keyring (macOS Keychain,
Windows Credential Manager, or Linux Secret Service), with a file fallback
readable only by you.

Provide a token with --token, sign in with --username (the password is
prompted), or pick a method interactively. You can also set the
LOOKOUT_TOKEN environment variable.`,
		Example: `  lookout auth login
  lookout auth login --username admin
  lookout auth login --token "$TOKEN"`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			prompter := prompt.New(out)

			if os.Getenv(auth.EnvVarName) != "" {
				out.Info("%s environment variable is set", auth.EnvVarName)
				out.Muted("Environment variable takes precedence over stored credentials")
				out.Println()
			}

			method := loginMethodToken

			switch {
			case tokenFlag != "":
			case username != "":
				method = loginMethodPassword
			default:
				if !prompter.CanPrompt() {
					return clierrors.CannotPrompt(auth.EnvVarName)
				}

				options := []string{loginMethodToken, loginMethodPassword, loginMethodNoAuth}

				idx, err := prompter.Select("How do you want to authenticate?", options)
				if err != nil {
					if prompt.IsCanceled(err) {
						return nil
					}

					return fmt.Errorf("read login method: %w", err)
				}

				method = options[idx]
			}

			switch method {
			case loginMethodNoAuth:
				return disableAuth(out)
			case loginMethodPassword:
				return loginWithPassword(cmd, out, prompter, username)
			}

			token := strings.TrimSpace(tokenFlag)
			if token == "" {
				var err error

				token, err = prompter.Secret("Enter your bearer token")
				if err != nil {
					if prompt.IsCanceled(err) {
						return nil
					}

					return fmt.Errorf("read token prompt: %w", err)
				}
			}

			if token == "" {
				return clierrors.TokenEmpty()
			}

			if auth.IsNoAuth(token) {
				return disableAuth(out)
			}

			if err := auth.StoreToken(token); err != nil {
				return clierrors.ConfigFailed("store credentials", err)
			}

			out.Success("Token stored")
			out.Muted("Run 'lookout status' to verify access")

			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "Bearer token for non-interactive login (prefer LOOKOUT_TOKEN env var to avoid shell history exposure)")
	cmd.Flags().StringVar(&username, "username", "", "Sign in with this username; the password is prompted")

	return cmd
}

func loginWithPassword(cmd *cobra.Command, out *output.Writer, prompter *prompt.Prompter, username string) error {
	if !prompter.CanPrompt() {
		return clierrors.CannotPrompt(auth.EnvVarName)
	}

	if username == "" {
		var err error

		username, err = prompter.Text("Username")
		if err != nil {
			if prompt.IsCanceled(err) {
				return nil
			}

			return fmt.Errorf("read username prompt: %w", err)
		}
	}

	password, err := prompter.Secret("Password")
	if err != nil {
		if prompt.IsCanceled(err) {
			return nil
		}

		return fmt.Errorf("read password prompt: %w", err)
	}

	ctx := cmd.Context()
	rt := newRuntime(ctx)

	// Sign in without whatever token is currently stored.
	anonymous := client.New(rt.cfg.APIURL(), session.New(auth.NewStaticStore(""), rt.session.Reauth())).
		WithTimeout(rt.cfg.ClientTimeout()).
		WithRetryDelay(rt.cfg.RetryDelay()).
		WithLogger(rt.logger)

	spin := out.Spinner("Signing in")
	spin.Start()

	result, err := anonymous.Login(ctx, strings.TrimSpace(username), password)
	if err != nil {
		spin.StopWithFailure("Sign-in failed")

		if client.IsKind(err, client.KindAuthRequired) {
			return clierrors.AuthFailed(err)
		}

		return clierrors.FromClientError("sign in", err)
	}

	spin.Stop()

	if auth.IsNoAuth(result.Token) {
		return disableAuth(out)
	}

	if err := auth.StoreToken(result.Token); err != nil {
		return clierrors.ConfigFailed("store credentials", err)
	}

	out.Success("Signed in as %s", result.Username)

	return nil
}

func disableAuth(out *output.Writer) error {
	if err := auth.DisableAuth(); err != nil {
		return clierrors.ConfigFailed("store credentials", err)
	}

	out.Success("Authentication disabled; requests are sent without a token")

	return nil
}

// AuthStatus represents authentication status for JSON output.
type AuthStatus struct {
	Source       string         `json:"source"`
	HasToken     bool           `json:"hasToken"`
	AuthDisabled bool           `json:"authDisabled"`
	Backend      string         `json:"backend"`
	RateLimits   map[string]any `json:"rateLimits,omitempty"`
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long: `Show where the current credential comes from and the rate limit status the
backend reports for this client.`,
		Example: `  lookout auth status
  lookout auth status --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			rt := newRuntime(ctx)

			source, token := auth.GetCredentials()
			status := AuthStatus{
				Source:       sourceLabel(source),
				HasToken:     token != "" && !auth.IsNoAuth(token),
				AuthDisabled: auth.IsNoAuth(token),
				Backend:      rt.client.BaseURL(),
			}

			spin := out.Spinner("Checking rate limits")
			spin.Start()

			limits, err := rt.client.AuthStatus(ctx)

			spin.Stop()

			if err != nil {
				return rt.callError(cmd, "check auth status", err)
			}

			status.RateLimits = limits

			if out.JSON {
				if err := out.PrintJSON(status); err != nil {
					return fmt.Errorf("print auth status json: %w", err)
				}

				return nil
			}

			credential := "none"

			switch {
			case status.AuthDisabled:
				credential = "authentication disabled"
			case status.HasToken:
				credential = "bearer token"
			}

			pairs := [][2]string{
				{"Backend", status.Backend},
				{"Credential", credential},
				{"Source", status.Source},
			}

			keys := make([]string, 0, len(limits))
			for k := range limits {
				keys = append(keys, k)
			}

			sort.Strings(keys)

			for _, k := range keys {
				pairs = append(pairs, [2]string{k, fmt.Sprint(limits[k])})
			}

			out.KeyValues(pairs)

			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  `Remove the stored token from the keyring and the file fallback.`,
		Example: `  lookout auth logout
  lookout auth logout --yes`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			prompter := prompt.New(out)

			if !yes && prompter.CanPrompt() {
				ok, err := prompter.Confirm("Remove stored credentials?", true)
				if err != nil && !prompt.IsCanceled(err) {
					return fmt.Errorf("read confirmation: %w", err)
				}

				if !ok {
					return nil
				}
			}

			if err := auth.DeleteToken(); err != nil {
				out.Muted("No stored credentials found")
				return nil
			}

			out.Success("Logged out successfully")

			if os.Getenv(auth.EnvVarName) != "" {
				out.Println()
				out.Warning("%s environment variable is still set", auth.EnvVarName)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newAuthDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Record that the backend runs without authentication",
		Long: `Store the no-auth marker instead of a token. Requests are then sent without
an Authorization header, and an authentication rejection never clears the
marker.`,
		Example: `  lookout auth disable`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return disableAuth(output.FromContext(cmd.Context()))
		},
	}
}

func sourceLabel(source auth.CredentialSource) string {
	if source == auth.SourceNone {
		return "none"
	}

	return string(source)
}
