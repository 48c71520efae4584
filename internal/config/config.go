package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "AUTHFLOW"

type Config interface {
	EnvConfig
	HTTPConfig
	StoreConfig
	FlowConfig
	MockConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	HTTP
	Store
	Flow
	Mock
}

// New returns a Config built from defaults and AUTHFLOW_* environment variables only.
func New() Config {
	return newMainConfig(newViper())
}

// Load reads the YAML file at path (when it exists) on top of the defaults.
// Environment variables always win over the file.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrap(err, "[config.Load] failed to read config file")
			}
		}
	}
	return newMainConfig(v), nil
}

func newMainConfig(v *viper.Viper) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{v: v},
		HTTP:    HTTP{v: v},
		Store:   Store{v: v},
		Flow:    Flow{v: v},
		Mock:    Mock{v: v},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyAppName, "Auth Flow")
	v.SetDefault(keyEnv, "DEV")
	v.SetDefault(keyLogLevel, "info")

	v.SetDefault(keyBaseURL, "http://localhost:8000")
	v.SetDefault(keyRequestTimeout, 30*time.Second)
	v.SetDefault(keyResourceTimeout, 60*time.Second)
	v.SetDefault(keyUserAgent, "go-auth-client/1.0")

	v.SetDefault(keyStoreBackend, StoreBackendFile)
	v.SetDefault(keyStorePath, filepath.Join(defaultDataDir(), "credentials.json"))
	v.SetDefault(keyStoreKeyPath, filepath.Join(defaultDataDir(), "credentials.key"))
	v.SetDefault(keyRedisAddr, "localhost:6379")
	v.SetDefault(keyRedisDB, 0)
	v.SetDefault(keyRedisPrefix, "authflow")

	v.SetDefault(keyUsernameDebounce, time.Second)
	v.SetDefault(keyMinPasswordLength, 8)
	v.SetDefault(keyMinAge, 16)
	v.SetDefault(keyCodeLength, 6)

	v.SetDefault(keyMockListenAddr, ":8000")
	v.SetDefault(keyMockJWTSecret, "mock-api-signing-secret")
	v.SetDefault(keyMockAccessTokenExpiry, 15*time.Minute)
	return v
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, "authflow")
}
