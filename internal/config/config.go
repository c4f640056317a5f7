package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Session
	Store
}

func New() Config {
	return mainConfig{}
}
