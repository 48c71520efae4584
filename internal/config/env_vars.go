package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	keyAppName  = "app_name"
	keyEnv      = "env"
	keyLogLevel = "log_level"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(keyAppName)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString(keyEnv))
	if env == "" {
		return "DEV"
	}
	return env
}

// GetLogLevel returns a zerolog level name ("debug", "info", ...)
func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.v.GetString(keyLogLevel))
}
