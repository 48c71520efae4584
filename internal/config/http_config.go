package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	keyBaseURL         = "http.base_url"
	keyRequestTimeout  = "http.request_timeout"
	keyResourceTimeout = "http.resource_timeout"
	keyUserAgent       = "http.user_agent"
)

type HTTPConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetResourceTimeout() time.Duration
	GetUserAgent() string
}

type HTTP struct {
	v *viper.Viper
}

var _ HTTPConfig = HTTP{}

// GetBaseURL returns the API root without a trailing slash (e.g. "https://api.example.com")
func (h HTTP) GetBaseURL() string {
	return strings.TrimRight(h.v.GetString(keyBaseURL), "/")
}

// GetRequestTimeout bounds a single request attempt.
func (h HTTP) GetRequestTimeout() time.Duration {
	return h.v.GetDuration(keyRequestTimeout)
}

// GetResourceTimeout bounds the whole exchange including reading the body.
func (h HTTP) GetResourceTimeout() time.Duration {
	return h.v.GetDuration(keyResourceTimeout)
}

func (h HTTP) GetUserAgent() string {
	return h.v.GetString(keyUserAgent)
}
