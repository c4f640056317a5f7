package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/jrsteele09/go-shop-client/api"
	"github.com/jrsteele09/go-shop-client/internal/config"
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"github.com/jrsteele09/go-shop-client/internal/logging"
	"github.com/jrsteele09/go-shop-client/sales"
	"github.com/jrsteele09/go-shop-client/session"
	"github.com/jrsteele09/go-shop-client/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cli holds what the commands of one invocation share.
type cli struct {
	cfg        config.Config
	logger     zerolog.Logger
	store      tokenstore.Store
	closeStore func() error
	api        *api.Client
	manager    *session.Manager
	sales      *sales.Client
	registry   *prometheus.Registry
}

func (c *cli) open(cmd *cobra.Command) error {
	ctx := cmd.Context()

	c.cfg = config.New()
	c.logger = logging.New(c.cfg)

	store, closeStore, err := tokenstore.Open(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	c.store, c.closeStore = store, closeStore

	c.api, err = api.New(c.cfg.GetAPIBaseURL(),
		api.WithTimeout(c.cfg.GetHTTPTimeout()),
		api.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(collectors.NewGoCollector())
	metrics, err := session.NewMetrics(c.registry)
	if err != nil {
		return err
	}

	c.manager, err = session.NewManager(c.api, c.store,
		session.WithLogger(c.logger),
		session.WithMetrics(metrics),
		session.WithRefreshSkew(c.cfg.GetRefreshSkew()),
		session.WithNavigator(navigator(cmd.ErrOrStderr(), c.logger)),
	)
	if err != nil {
		return err
	}

	c.sales = sales.NewClient(c.api, c.manager,
		sales.WithTimeout(c.cfg.GetHTTPTimeout()),
		sales.WithLogger(c.logger),
	)

	if err := c.manager.Restore(ctx); err != nil && !errors.Is(err, shoperrors.ErrSessionExpired) {
		if errors.Is(err, shoperrors.ErrStoreSealed) {
			return fmt.Errorf("%w: check SHOP_STORE_KEY", err)
		}
		return fmt.Errorf("restore session: %w", err)
	}
	return nil
}

func (c *cli) close() error {
	if c.manager != nil {
		c.manager.Close()
	}
	if c.closeStore == nil {
		return nil
	}
	closeStore := c.closeStore
	c.closeStore = nil
	return closeStore()
}

// requireSession fails unless the restored session holds an access token.
func (c *cli) requireSession() (session.Session, error) {
	s := c.manager.Session()
	if !s.IsAuthenticated {
		return s, errNotLoggedIn
	}
	return s, nil
}

var errNotLoggedIn = errors.New("not logged in, run `shopctl login`")

// navigator reports route changes the way a terminal can: an expired session
// tells the user to log in again.
func navigator(w io.Writer, logger zerolog.Logger) func(session.Route) {
	return func(route session.Route) {
		logger.Debug().Str("route", string(route)).Msg("Navigate")
		if route == session.RouteLogin {
			fmt.Fprintln(w, session.MsgSessionExpired)
		}
	}
}

// userError turns an error from a protected call into something to print.
func userError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shoperrors.ErrSessionExpired):
		return errors.New(session.MsgSessionExpired)
	case errors.Is(err, shoperrors.ErrNotAuthenticated):
		return errNotLoggedIn
	case errors.Is(err, shoperrors.ErrNotFound), errors.Is(err, shoperrors.ErrInvalidRequest), errors.Is(err, shoperrors.ErrPageOutOfRange):
		return err
	default:
		return errors.New(api.UserMessage(err))
	}
}

func displayName(s session.Session) string {
	if s.User == nil {
		return "(unknown user)"
	}
	return s.User.DisplayName()
}
