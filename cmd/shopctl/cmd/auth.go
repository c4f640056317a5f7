package cmd

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/go-shop-client/api"
	"github.com/jrsteele09/go-shop-client/internal/config"
	"github.com/spf13/cobra"
)

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Exchange email and password for an access/refresh token pair.

The password may be given with --password or the SHOP_PASSWORD environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if s := c.manager.Session(); s.IsAuthenticated {
				fmt.Fprintf(out, "Already logged in as %s\n", displayName(s))
				return nil
			}

			if !c.manager.Login(cmd.Context(), email, password) {
				return errors.New(c.manager.Session().LastError)
			}
			fmt.Fprintf(out, "Logged in as %s\n", displayName(c.manager.Session()))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", config.GetEnv("SHOP_PASSWORD", ""), "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.manager.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			s := c.manager.Session()
			if !s.IsAuthenticated {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			if s.User == nil {
				if err := c.manager.FetchUser(cmd.Context(), s.AccessToken); err != nil {
					return userError(err)
				}
				s = c.manager.Session()
			}

			fmt.Fprintf(out, "%s\n", displayName(s))
			if s.User != nil {
				fmt.Fprintf(out, "  email: %s\n", s.User.Email)
			}
			if !s.AccessExpiresAt.IsZero() {
				fmt.Fprintf(out, "  access token expires: %s\n", s.AccessExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newRefreshCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			before, err := c.requireSession()
			if err != nil {
				return err
			}
			if err := c.manager.Refresh(cmd.Context()); err != nil {
				return userError(err)
			}
			if c.manager.Session().AccessToken == before.AccessToken {
				return errors.New("no response from the server, the access token was not refreshed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Access token refreshed")
			return nil
		},
	}
}

func newSignupCmd(c *cli) *cobra.Command {
	var req api.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.api.Signup(cmd.Context(), req); err != nil {
				return errors.New(api.UserMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. Run `shopctl login` to sign in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "user name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", config.GetEnv("SHOP_PASSWORD", ""), "account password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
