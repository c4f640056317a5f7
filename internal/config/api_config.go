package config

import (
	"strings"
	"time"
)

const (
	apiBaseURLVar  = "SHOP_API_BASE_URL"
	httpTimeoutVar = "SHOP_HTTP_TIMEOUT"
)

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the REST API root, always with a trailing slash so that
// relative endpoint paths ("token/", "sales/") resolve beneath it.
func (API) GetAPIBaseURL() string {
	base := GetEnv(apiBaseURLVar, "http://127.0.0.1:8000/api/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (API) GetHTTPTimeout() time.Duration {
	return GetDurationEnv(httpTimeoutVar, 15*time.Second)
}
