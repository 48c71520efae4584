package config

import "github.com/spf13/viper"

const (
	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

const (
	keyStoreBackend = "store.backend"
	keyStorePath    = "store.path"
	keyStoreKeyPath = "store.key_path"
	keyRedisAddr    = "store.redis.addr"
	keyRedisPass    = "store.redis.password"
	keyRedisDB      = "store.redis.db"
	keyRedisPrefix  = "store.redis.prefix"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetStorePath() string
	GetStoreKeyPath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Store struct {
	v *viper.Viper
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() string {
	switch backend := s.v.GetString(keyStoreBackend); backend {
	case StoreBackendRedis, StoreBackendMemory:
		return backend
	default:
		return StoreBackendFile
	}
}

func (s Store) GetStorePath() string {
	return s.v.GetString(keyStorePath)
}

func (s Store) GetStoreKeyPath() string {
	return s.v.GetString(keyStoreKeyPath)
}

func (s Store) GetRedisAddr() string {
	return s.v.GetString(keyRedisAddr)
}

func (s Store) GetRedisPassword() string {
	return s.v.GetString(keyRedisPass)
}

func (s Store) GetRedisDB() int {
	return s.v.GetInt(keyRedisDB)
}

func (s Store) GetRedisPrefix() string {
	return s.v.GetString(keyRedisPrefix)
}
