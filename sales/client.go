// Package sales reads and writes the shop's sales records through the
// session's authorised transport.
package sales

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-shop-client/api"
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	PathSales       = "sales/"
	PathShops       = "shops/"
	PathPerformance = "performance/"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Authorizer hands out http clients that authenticate every request.
// *session.Manager satisfies it.
type Authorizer interface {
	HTTPClient(base http.RoundTripper) *http.Client
}

type Client struct {
	api    *api.Client
	logger zerolog.Logger
}

type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	base    http.RoundTripper
	logger  zerolog.Logger
}

func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithBaseTransport sets the transport under the authorising one.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.base = rt
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient derives an authorised client from apiClient.
func NewClient(apiClient *api.Client, auth Authorizer, options ...Option) *Client {
	opts := clientOptions{timeout: 15 * time.Second, logger: log.Logger}
	for _, opt := range options {
		opt(&opts)
	}

	authorised := apiClient.With(
		api.WithHTTPClient(auth.HTTPClient(opts.base)),
		api.WithTimeout(opts.timeout),
	)
	return &Client{
		api:    authorised,
		logger: opts.logger.With().Str("component", "sales").Logger(),
	}
}

func (c *Client) ListSales(ctx context.Context) ([]Sale, error) {
	var sales []Sale
	if err := c.api.Do(ctx, http.MethodGet, PathSales, nil, &sales); err != nil {
		return nil, errors.Wrap(err, "[sales.ListSales]")
	}
	c.logger.Debug().Int("count", len(sales)).Msg("Fetched sales")
	return sales, nil
}

// ListSalesPage fetches every sale, filters it and returns the requested page.
func (c *Client) ListSalesPage(ctx context.Context, filter Filter, page, perPage int) (Page[Sale], error) {
	sales, err := c.ListSales(ctx)
	if err != nil {
		return Page[Sale]{}, err
	}
	return Paginate(filter.Apply(sales), page, perPage)
}

func (c *Client) ListShops(ctx context.Context) ([]Shop, error) {
	var shops []Shop
	if err := c.api.Do(ctx, http.MethodGet, PathShops, nil, &shops); err != nil {
		return nil, errors.Wrap(err, "[sales.ListShops]")
	}
	return shops, nil
}

// DeleteSale removes a sale. A sale the server does not know is ErrNotFound.
func (c *Client) DeleteSale(ctx context.Context, id int) error {
	if id <= 0 {
		return errors.Wrapf(shoperrors.ErrInvalidRequest, "[sales.DeleteSale] invalid id %d", id)
	}
	err := c.api.Do(ctx, http.MethodDelete, PathSales+strconv.Itoa(id)+"/", nil, nil)
	if api.StatusCode(err) == http.StatusNotFound {
		return errors.Wrapf(shoperrors.ErrNotFound, "[sales.DeleteSale] sale %d", id)
	}
	if err != nil {
		return errors.Wrapf(err, "[sales.DeleteSale] sale %d", id)
	}
	c.logger.Info().Int("sale_id", id).Msg("Sale deleted")
	return nil
}

// CreateSale posts a new sale as multipart/form-data, attaching the image when present.
func (c *Client) CreateSale(ctx context.Context, in NewSale) (*Sale, error) {
	if err := validate.Struct(in); err != nil {
		return nil, errors.Wrapf(shoperrors.ErrInvalidRequest, "[sales.CreateSale] %v", err)
	}

	body, contentType, err := encodeSaleForm(in)
	if err != nil {
		return nil, errors.Wrap(err, "[sales.CreateSale] encode form")
	}

	var created Sale
	if err := c.api.DoBody(ctx, http.MethodPost, PathSales, contentType, body, &created); err != nil {
		return nil, errors.Wrap(err, "[sales.CreateSale]")
	}
	c.logger.Info().Int("sale_id", created.ID).Int("shop", created.Shop).Msg("Sale added")
	return &created, nil
}

func (c *Client) Performance(ctx context.Context) (*Performance, error) {
	var perf Performance
	if err := c.api.Do(ctx, http.MethodGet, PathPerformance, nil, &perf); err != nil {
		return nil, errors.Wrap(err, "[sales.Performance]")
	}
	return &perf, nil
}

func encodeSaleForm(in NewSale) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := []struct {
		name  string
		value string
	}{
		{"shop", strconv.Itoa(in.Shop)},
		{"date", in.Date},
		{"cash_in", formatDecimal(in.CashIn)},
		{"cash_out", formatDecimal(in.CashOut)},
		{"till_in", formatDecimal(in.TillIn)},
		{"till_out", formatDecimal(in.TillOut)},
	}
	if in.ClosingBalance != nil {
		fields = append(fields, struct {
			name  string
			value string
		}{"closing_balance", formatDecimal(*in.ClosingBalance)})
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if in.Image != nil && in.Image.Content != nil {
		part, err := w.CreateFormFile("image", in.Image.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, in.Image.Content); err != nil {
			return nil, "", fmt.Errorf("copy image: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
