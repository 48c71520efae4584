package apiclient

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// rawError accepts either {"code","message"} or a bare string under "error".
type rawError struct {
	payload *APIErrorPayload
	text    string
}

func (r *rawError) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.text)
	}
	var p APIErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		// Unknown shape (e.g. a field error map); keep the raw text for the message.
		r.text = string(data)
		return nil
	}
	if p.Code != "" || p.Message != "" {
		r.payload = &p
	}
	return nil
}

type parsedError struct {
	api     *APIErrorPayload
	message string
}

func parseErrorBody(body []byte) parsedError {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return parsedError{}
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return parsedError{message: truncate(string(body), 200)}
	}

	switch {
	case eb.Error.payload != nil:
		return parsedError{api: eb.Error.payload, message: eb.Error.payload.Message}
	case eb.Error.text != "":
		return parsedError{message: eb.Error.text}
	case eb.Detail != "":
		return parsedError{message: eb.Detail}
	default:
		return parsedError{message: eb.Message}
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
