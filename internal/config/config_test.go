package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-shop-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestAPIBaseURL_AddsTrailingSlash(t *testing.T) {
	t.Setenv("SHOP_API_BASE_URL", "https://shop.example.com/api")
	require.Equal(t, "https://shop.example.com/api/", config.New().GetAPIBaseURL())
}

func TestAPIBaseURL_Default(t *testing.T) {
	t.Setenv("SHOP_API_BASE_URL", "")
	require.Equal(t, "http://127.0.0.1:8000/api/", config.New().GetAPIBaseURL())
}

func TestRefreshInterval(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("SHOP_REFRESH_INTERVAL", "")
		require.Equal(t, 30*time.Minute, config.New().GetRefreshInterval())
	})

	t.Run("override", func(t *testing.T) {
		t.Setenv("SHOP_REFRESH_INTERVAL", "5m")
		require.Equal(t, 5*time.Minute, config.New().GetRefreshInterval())
	})

	t.Run("garbage falls back", func(t *testing.T) {
		t.Setenv("SHOP_REFRESH_INTERVAL", "soon")
		require.Equal(t, 30*time.Minute, config.New().GetRefreshInterval())
	})
}

func TestStoreBackend_Normalised(t *testing.T) {
	t.Setenv("SHOP_STORE", "Redis")
	require.Equal(t, config.StoreBackendRedis, config.New().GetStoreBackend())
}
