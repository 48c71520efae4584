package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	keyUsernameDebounce  = "flow.username_debounce"
	keyMinPasswordLength = "flow.min_password_length"
	keyMinAge            = "flow.min_age"
	keyCodeLength        = "flow.code_length"
)

type FlowConfig interface {
	GetUsernameDebounce() time.Duration
	GetMinPasswordLength() int
	GetMinAge() int
	GetCodeLength() int
}

type Flow struct {
	v *viper.Viper
}

var _ FlowConfig = Flow{}

func (f Flow) GetUsernameDebounce() time.Duration {
	return f.v.GetDuration(keyUsernameDebounce)
}

func (f Flow) GetMinPasswordLength() int {
	return f.v.GetInt(keyMinPasswordLength)
}

func (f Flow) GetMinAge() int {
	return f.v.GetInt(keyMinAge)
}

func (f Flow) GetCodeLength() int {
	return f.v.GetInt(keyCodeLength)
}
