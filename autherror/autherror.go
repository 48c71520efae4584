// Package autherror turns every failure a flow can see into one closed
// AuthError shape so the presentation layer has a single error path.
package autherror

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
)

// Category is the closed set of failure classes.
type Category int

const (
	CategoryUnrecognized Category = iota
	CategoryValidation
	CategoryInvalidCredentials
	CategoryNotFound
	CategoryAccountLocked
	CategoryNotVerified
	CategoryRateLimited
	CategoryInvalidCode
	CategoryCodeExpired
	CategoryUsernameTaken
	CategoryUnauthorized
	CategoryForbidden
	CategoryServer
	CategoryNetwork
	CategoryProtocol
)

var categoryNames = map[Category]string{
	CategoryUnrecognized:       "unrecognized",
	CategoryValidation:         "validation",
	CategoryInvalidCredentials: "invalid_credentials",
	CategoryNotFound:           "not_found",
	CategoryAccountLocked:      "account_locked",
	CategoryNotVerified:        "not_verified",
	CategoryRateLimited:        "rate_limited",
	CategoryInvalidCode:        "invalid_code",
	CategoryCodeExpired:        "code_expired",
	CategoryUsernameTaken:      "username_taken",
	CategoryUnauthorized:       "unauthorized",
	CategoryForbidden:          "forbidden",
	CategoryServer:             "server",
	CategoryNetwork:            "network",
	CategoryProtocol:           "protocol",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

var defaultMessages = map[Category]string{
	CategoryUnrecognized:       "Something went wrong. Please try again.",
	CategoryValidation:         "Please check the highlighted fields.",
	CategoryInvalidCredentials: "Invalid username or password.",
	CategoryNotFound:           "Account not found.",
	CategoryAccountLocked:      "This account is temporarily locked.",
	CategoryNotVerified:        "Please verify your email address first.",
	CategoryRateLimited:        "Too many attempts. Please wait and try again.",
	CategoryInvalidCode:        "The code is incorrect.",
	CategoryCodeExpired:        "The code has expired. Request a new one.",
	CategoryUsernameTaken:      "This username is already taken.",
	CategoryUnauthorized:       "Your session has expired. Please sign in again.",
	CategoryForbidden:          "You are not allowed to do that.",
	CategoryServer:             "The server is having trouble. Please try again later.",
	CategoryNetwork:            "Unable to reach the server. Check your connection.",
	CategoryProtocol:           "Unexpected response from the server.",
}

// Structured codes the backend sends in {"error":{"code"}}.
var codeCategories = map[string]Category{
	"validation_error":     CategoryValidation,
	"invalid_request":      CategoryValidation,
	"invalid_credentials":  CategoryInvalidCredentials,
	"user_not_found":       CategoryNotFound,
	"not_found":            CategoryNotFound,
	"account_locked":       CategoryAccountLocked,
	"email_not_verified":   CategoryNotVerified,
	"account_not_verified": CategoryNotVerified,
	"too_many_attempts":    CategoryRateLimited,
	"rate_limited":         CategoryRateLimited,
	"invalid_code":         CategoryInvalidCode,
	"code_expired":         CategoryCodeExpired,
	"username_taken":       CategoryUsernameTaken,
	"email_taken":          CategoryValidation,
	"password_too_weak":    CategoryValidation,
}

// AuthError is the value stored in a flow's LastError.
type AuthError struct {
	Code     string
	Message  string
	Category Category

	// Raw is the unprocessed server message, kept for unrecognized failures.
	Raw string

	cause error
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// Is matches another *AuthError by category.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Category == e.Category
}

// New builds an AuthError, filling Message from the category when empty.
func New(category Category, code, message string) *AuthError {
	if message == "" {
		message = defaultMessages[category]
	}
	if code == "" {
		code = category.String()
	}
	return &AuthError{Code: code, Message: message, Category: category}
}

// Validation builds the error used for checks that fail before any request is sent.
func Validation(message string) *AuthError {
	return &AuthError{
		Code:     "validation_error",
		Message:  message,
		Category: CategoryValidation,
		cause:    autherrors.ErrValidation,
	}
}

// FromError maps any failure onto an AuthError. It returns nil for nil.
func FromError(err error) *AuthError {
	if err == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) {
		return fromHTTPError(httpErr)
	}

	switch {
	case errors.Is(err, autherrors.ErrValidation):
		return Validation(err.Error())
	case errors.Is(err, autherrors.ErrIncompleteLogin):
		return wrap(New(CategoryProtocol, "incomplete_login", "Login could not be completed. Please try again."), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return wrap(New(CategoryNetwork, "", ""), err)
	}

	return wrap(&AuthError{
		Code:     CategoryUnrecognized.String(),
		Message:  defaultMessages[CategoryUnrecognized],
		Category: CategoryUnrecognized,
		Raw:      err.Error(),
	}, err)
}

// FromMessage classifies a {"success":false,"message"} body that arrived with a 2xx status.
func FromMessage(message string) *AuthError {
	return fromMessage(message, CategoryUnrecognized)
}

func fromHTTPError(e *apiclient.HTTPError) *AuthError {
	serverMessage := e.ServerMessage()

	switch e.Kind {
	case apiclient.KindNetwork:
		return wrap(New(CategoryNetwork, "network_error", ""), e)
	case apiclient.KindEncoding, apiclient.KindDecoding, apiclient.KindInvalidResponse, apiclient.KindInvalidURL:
		return wrap(New(CategoryProtocol, "", ""), e)
	case apiclient.KindAPI:
		if category, ok := codeCategories[e.API.Code]; ok {
			return wrap(New(category, e.API.Code, serverMessage), e)
		}
		return wrap(unrecognized(e.API.Code, serverMessage), e)
	case apiclient.KindValidation:
		return wrap(New(CategoryValidation, "", serverMessage), e)
	case apiclient.KindServerError:
		return wrap(New(CategoryServer, "", ""), e)
	case apiclient.KindNotFound:
		return wrap(New(CategoryNotFound, "", serverMessage), e)
	case apiclient.KindUnauthorized:
		return wrap(fromMessage(serverMessage, CategoryUnauthorized), e)
	case apiclient.KindForbidden:
		return wrap(fromMessage(serverMessage, CategoryForbidden), e)
	}

	if e.StatusCode == http.StatusTooManyRequests {
		return wrap(New(CategoryRateLimited, "", serverMessage), e)
	}
	return wrap(fromMessage(serverMessage, CategoryUnrecognized), e)
}

// fromMessage classifies an unstructured server message.
//
// The substring matching below only exists for backend responses that carry
// no error code. It is English-only and easy to fool; new server errors must
// use structured codes instead of new keywords here.
func fromMessage(message string, fallback Category) *AuthError {
	lower := strings.ToLower(message)
	for _, k := range messageKeywords {
		if strings.Contains(lower, k.substring) {
			return New(k.category, "", message)
		}
	}
	if fallback == CategoryUnrecognized {
		return unrecognized("", message)
	}
	return New(fallback, "", message)
}

var messageKeywords = []struct {
	substring string
	category  Category
}{
	{"too many", CategoryRateLimited},
	{"locked", CategoryAccountLocked},
	{"verified", CategoryNotVerified},
	{"credentials", CategoryInvalidCredentials},
	{"not found", CategoryNotFound},
}

func unrecognized(code, raw string) *AuthError {
	e := New(CategoryUnrecognized, code, raw)
	e.Raw = raw
	return e
}

func wrap(e *AuthError, cause error) *AuthError {
	e.cause = cause
	return e
}
