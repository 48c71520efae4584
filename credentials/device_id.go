package credentials

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DeviceID returns the installation id stored at path, creating one on first
// use. It is sent with remember_device logins and survives Clear.
func DeviceID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if id, parseErr := uuid.Parse(strings.TrimSpace(string(data))); parseErr == nil {
			return id.String(), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrap(err, "[credentials.DeviceID] failed to read device id")
	}

	id := uuid.NewString()
	if err := writeFileAtomic(path, []byte(id+"\n")); err != nil {
		return "", errors.Wrap(err, "[credentials.DeviceID] failed to persist device id")
	}
	return id, nil
}
