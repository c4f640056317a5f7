package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-shop-client/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newWatchCmd(c *cli) *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive, refreshing it on a fixed interval",
		Long: `watch refreshes the access token every --interval until interrupted or
until the server rejects the refresh token.

With --metrics-addr the session metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			if interval <= 0 {
				interval = c.cfg.GetRefreshInterval()
			}
			out := cmd.OutOrStdout()
			displayAppname(cmd, c.cfg.GetAppName())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if metricsAddr != "" {
				shutdown, err := serveMetrics(ctx, c, metricsAddr)
				if err != nil {
					return err
				}
				defer shutdown()
				fmt.Fprintf(out, "Metrics on http://%s/metrics\n", metricsAddr)
			}

			ended := make(chan struct{})
			var once sync.Once
			unsubscribe := c.manager.Subscribe(func(s session.Session) {
				if !s.IsAuthenticated {
					once.Do(func() { close(ended) })
				}
			})
			defer unsubscribe()

			refresher := c.manager.StartRefresher(ctx, interval)
			defer refresher.Stop()
			fmt.Fprintf(out, "Refreshing every %s, press Ctrl+C to stop\n", interval)

			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "Stopped")
				return nil
			case <-ended:
				return errors.New(session.MsgSessionExpired)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh interval (default SHOP_REFRESH_INTERVAL)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func serveMetrics(ctx context.Context, c *cli, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Err(err).Msg("Metrics server stopped")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Err(err).Msg("server.Shutdown")
		}
	}, nil
}

func displayAppname(cmd *cobra.Command, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(cmd.OutOrStdout(), myFigure.String())
}
