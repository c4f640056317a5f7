package config

import "time"

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetRefreshSkew() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRefreshInterval() time.Duration {
	return GetDurationEnv("SHOP_REFRESH_INTERVAL", 30*time.Minute)
}

// GetRefreshSkew is how close to the access token's expiry a token request
// triggers a refresh ahead of time.
func (Session) GetRefreshSkew() time.Duration {
	return GetDurationEnv("SHOP_REFRESH_SKEW", 30*time.Second)
}
