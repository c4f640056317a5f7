package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetStoreFile() string
	GetStoreKey() string
	GetRedisURL() string
	GetSQLitePath() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() string {
	return strings.ToLower(GetEnv("SHOP_STORE", StoreBackendFile))
}

func (Store) GetStoreFile() string {
	return GetEnv("SHOP_STORE_FILE", filepath.Join(configDir(), "tokens.json"))
}

// GetStoreKey is the passphrase used to seal the token file. Empty means plain JSON.
func (Store) GetStoreKey() string {
	return GetEnv("SHOP_STORE_KEY", "")
}

func (Store) GetRedisURL() string {
	return GetEnv("SHOP_REDIS_URL", "redis://localhost:6379/0")
}

func (Store) GetSQLitePath() string {
	return GetEnv("SHOP_SQLITE_PATH", filepath.Join(configDir(), "session.db"))
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "myshop")
}
