// Package cmd provides the CLI commands for shopctl.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// annotationNoSession marks commands that run without opening the session.
const annotationNoSession = "shopctl/no-session"

// Execute runs the command tree, printing any error to stderr.
func Execute(ctx context.Context) error {
	root, c := newRootCmd()
	defer func() {
		if err := c.close(); err != nil {
			c.logger.Err(err).Msg("Failed to close token store")
		}
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// newRootCmd builds a fresh command tree and the state its commands share.
func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:   "shopctl",
		Short: "shopctl - sales tracking client",
		Long: `shopctl signs in to the shop sales API and works with its sales records.

The session (access and refresh token) is kept in the configured token store,
so a login survives between invocations until logout or expiry.

Configuration comes from the environment (and a .env file):
  SHOP_API_BASE_URL      API root (default http://127.0.0.1:8000/api/)
  SHOP_STORE             file, sqlite, redis or memory (default file)
  SHOP_STORE_KEY         passphrase sealing the token file
  SHOP_REFRESH_INTERVAL  refresh period used by watch (default 30m)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNoSession] != "" || cmd.Name() == "help" {
				return nil
			}
			return c.open(cmd)
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newRefreshCmd(c),
		newSignupCmd(c),
		newSalesCmd(c),
		newShopsCmd(c),
		newPerformanceCmd(c),
		newWatchCmd(c),
		newVersionCmd(),
	)
	return root, c
}
