package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	keyMockListenAddr        = "mock.listen_addr"
	keyMockJWTSecret         = "mock.jwt_secret"
	keyMockAccessTokenExpiry = "mock.access_token_expiry"
)

// MockConfig configures the local mock backend (cmd/mockapi)
type MockConfig interface {
	GetMockListenAddr() string
	GetMockJWTSecret() string
	GetMockAccessTokenExpiry() time.Duration
}

type Mock struct {
	v *viper.Viper
}

var _ MockConfig = Mock{}

func (m Mock) GetMockListenAddr() string {
	return m.v.GetString(keyMockListenAddr)
}

func (m Mock) GetMockJWTSecret() string {
	return m.v.GetString(keyMockJWTSecret)
}

func (m Mock) GetMockAccessTokenExpiry() time.Duration {
	return m.v.GetDuration(keyMockAccessTokenExpiry)
}
