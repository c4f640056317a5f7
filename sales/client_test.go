package sales_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-shop-client/api"
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"github.com/jrsteele09/go-shop-client/internal/utils"
	"github.com/jrsteele09/go-shop-client/sales"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// bearerAuth authorises every request with a fixed token.
type bearerAuth string

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}

func (a bearerAuth) HTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: bearerTransport{token: string(a), base: base}}
}

type testFixture struct {
	client *sales.Client
	mux    *http.ServeMux
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	apiClient, err := api.New(srv.URL+"/api/", api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	return &testFixture{
		client: sales.NewClient(apiClient, bearerAuth("T1"), sales.WithLogger(zerolog.Nop())),
		mux:    mux,
	}
}

func TestListSalesPage(t *testing.T) {
	f := setupTestFixture(t)
	f.mux.HandleFunc("GET /api/sales/", func(w http.ResponseWriter, r *http.Request) {
		list := make([]map[string]any, 0, 15)
		for i := 1; i <= 15; i++ {
			list = append(list, map[string]any{"id": i, "shop": 1 + i%2, "date": "2024-05-01", "cash_in": "10.00"})
		}
		_ = json.NewEncoder(w).Encode(list)
	})

	page, err := f.client.ListSalesPage(t.Context(), sales.Filter{ShopID: 2}, 1, 5)

	require.NoError(t, err)
	require.Equal(t, 8, page.Total)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, []int{1, 3, 5, 7, 9}, ids(page.Items))
	require.Equal(t, sales.Amount(10), page.Items[0].CashIn)
}

func TestListShops(t *testing.T) {
	f := setupTestFixture(t)
	f.mux.HandleFunc("GET /api/shops/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"cyber"},{"id":2,"name":"milk_shop"}]`))
	})

	shops, err := f.client.ListShops(t.Context())

	require.NoError(t, err)
	require.Equal(t, []sales.Shop{{ID: 1, Name: "cyber"}, {ID: 2, Name: "milk_shop"}}, shops)
}

func TestDeleteSale(t *testing.T) {
	f := setupTestFixture(t)
	f.mux.HandleFunc("DELETE /api/sales/{id}/", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "4" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.client.DeleteSale(t.Context(), 4))
	require.ErrorIs(t, f.client.DeleteSale(t.Context(), 5), shoperrors.ErrNotFound)
	require.ErrorIs(t, f.client.DeleteSale(t.Context(), 0), shoperrors.ErrInvalidRequest)
}

func TestCreateSale_Multipart(t *testing.T) {
	f := setupTestFixture(t)
	f.mux.HandleFunc("POST /api/sales/", func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		require.Equal(t, "2", r.FormValue("shop"))
		require.Equal(t, "2024-05-01", r.FormValue("date"))
		require.Equal(t, "1500.00", r.FormValue("cash_in"))
		require.Equal(t, "12.50", r.FormValue("closing_balance"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "receipt.jpg", header.Filename)
		require.Equal(t, "jpeg-bytes", string(data))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":31,"shop":2,"date":"2024-05-01","cash_in":"1500.00","cash_out":"0.00","till_in":"0.00","till_out":"0.00","closing_balance":"12.50","image":"/media/receipt.jpg"}`))
	})

	sale, err := f.client.CreateSale(t.Context(), sales.NewSale{
		Shop:           2,
		Date:           "2024-05-01",
		CashIn:         1500,
		ClosingBalance: utils.Ptr(12.5),
		Image:          &sales.Attachment{Filename: "receipt.jpg", Content: strings.NewReader("jpeg-bytes")},
	})

	require.NoError(t, err)
	require.Equal(t, 31, sale.ID)
	require.Equal(t, "/media/receipt.jpg", sale.Image)
}

func TestCreateSale_WithoutOptionalFields(t *testing.T) {
	f := setupTestFixture(t)
	f.mux.HandleFunc("POST /api/sales/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hasBalance := r.MultipartForm.Value["closing_balance"]
		require.False(t, hasBalance)
		require.Empty(t, r.MultipartForm.File["image"])
		_, _ = w.Write([]byte(`{"id":32,"shop":1,"date":"2024-05-02"}`))
	})

	sale, err := f.client.CreateSale(t.Context(), sales.NewSale{Shop: 1, Date: "2024-05-02"})

	require.NoError(t, err)
	require.Nil(t, sale.ClosingBalance)
}

func TestCreateSale_Validation(t *testing.T) {
	f := setupTestFixture(t)

	cases := []sales.NewSale{
		{Date: "2024-05-01"},
		{Shop: 1},
		{Shop: 1, Date: "01/05/2024"},
		{Shop: 1, Date: "2024-05-01", CashIn: -1},
	}
	for _, in := range cases {
		_, err := f.client.CreateSale(t.Context(), in)
		require.ErrorIs(t, err, shoperrors.ErrInvalidRequest)
	}
}

func TestPerformance(t *testing.T) {
	f := setupTestFixture(t)
	f.mux.HandleFunc("GET /api/performance/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"shop_data":[{"shop":"cyber","total_cash":1200.5,"average_sales_per_day":40.01,"sales_to_target_ratio":0.5,"profit_margin":12.3}],
			"chart_data":{"labels":["Jan","Feb"],"datasets":[{"label":"cyber","data":[100,200]}]},
			"alerts":["milk_shop is below target"]
		}`))
	})

	perf, err := f.client.Performance(t.Context())

	require.NoError(t, err)
	require.Len(t, perf.ShopData, 1)
	require.Equal(t, "Cyber", perf.ShopData[0].DisplayName())
	require.Equal(t, "KSH 1200.50", sales.FormatKSH(perf.ShopData[0].TotalCash))
	require.Equal(t, []string{"Jan", "Feb"}, perf.ChartData.Labels)
	require.Equal(t, []float64{100, 200}, perf.ChartData.Datasets[0].Data)
	require.Equal(t, []string{"milk_shop is below target"}, perf.Alerts)
}

func TestUnauthorisedSurfacesStatus(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/api/sales/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"You do not have permission to perform this action."}`))
	})
	apiClient, err := api.New(srv.URL + "/api/")
	require.NoError(t, err)
	client := sales.NewClient(apiClient, bearerAuth("T1"))

	_, err = client.ListSales(t.Context())

	require.True(t, api.IsUnauthorized(err))
	require.Equal(t, "You do not have permission to perform this action.", api.UserMessage(err))
}
