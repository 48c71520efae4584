package apiclient

import (
	"fmt"
	"net/http"
)

// ErrorKind enumerates the failure shapes a request can produce.
type ErrorKind int

const (
	KindInvalidURL ErrorKind = iota + 1
	KindInvalidResponse
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindServerError
	KindHTTP
	KindAPI
	KindEncoding
	KindDecoding
	KindNetwork
)

var kindNames = map[ErrorKind]string{
	KindInvalidURL:      "invalid url",
	KindInvalidResponse: "invalid response",
	KindUnauthorized:    "unauthorized",
	KindForbidden:       "forbidden",
	KindNotFound:        "not found",
	KindValidation:      "validation",
	KindServerError:     "server error",
	KindHTTP:            "http error",
	KindAPI:             "api error",
	KindEncoding:        "encoding",
	KindDecoding:        "decoding",
	KindNetwork:         "network error",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// APIErrorPayload is the structured {"error":{"code","message"}} body.
type APIErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError is returned by Sender.Do for every non-2xx outcome and for
// transport, encoding and decoding failures.
type HTTPError struct {
	Kind       ErrorKind
	StatusCode int              // zero when no response was received
	API        *APIErrorPayload // set for KindAPI
	Message    string           // plain server message when the body carried one
	Cause      error
}

// Sentinels for errors.Is; only Kind is compared.
var (
	ErrInvalidURL      = &HTTPError{Kind: KindInvalidURL}
	ErrInvalidResponse = &HTTPError{Kind: KindInvalidResponse}
	ErrUnauthorized    = &HTTPError{Kind: KindUnauthorized}
	ErrForbidden       = &HTTPError{Kind: KindForbidden}
	ErrNotFound        = &HTTPError{Kind: KindNotFound}
	ErrValidation      = &HTTPError{Kind: KindValidation}
	ErrServerError     = &HTTPError{Kind: KindServerError}
	ErrHTTP            = &HTTPError{Kind: KindHTTP}
	ErrAPI             = &HTTPError{Kind: KindAPI}
	ErrEncoding        = &HTTPError{Kind: KindEncoding}
	ErrDecoding        = &HTTPError{Kind: KindDecoding}
	ErrNetwork         = &HTTPError{Kind: KindNetwork}
)

func (e *HTTPError) Error() string {
	switch {
	case e.API != nil:
		return fmt.Sprintf("%s (%d): %s: %s", e.Kind, e.StatusCode, e.API.Code, e.API.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (%d)", e.Kind, e.StatusCode)
	default:
		return e.Kind.String()
	}
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

func (e *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ServerMessage returns the most specific human readable message available.
func (e *HTTPError) ServerMessage() string {
	if e.API != nil && e.API.Message != "" {
		return e.API.Message
	}
	return e.Message
}

// errorFromStatus maps a non-2xx status to its error kind. 400 is handled by
// the caller because it depends on the body.
func errorFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500 && status <= 599:
		return KindServerError
	default:
		return KindHTTP
	}
}
