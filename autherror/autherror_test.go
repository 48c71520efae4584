package autherror_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/apiclient/fakeapi"
	"github.com/jrsteele09/go-auth-client/autherror"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestFromError_Nil(t *testing.T) {
	require.Nil(t, autherror.FromError(nil))
}

func TestFromError_StructuredCodes(t *testing.T) {
	tests := []struct {
		code     string
		category autherror.Category
	}{
		{"invalid_credentials", autherror.CategoryInvalidCredentials},
		{"account_locked", autherror.CategoryAccountLocked},
		{"email_not_verified", autherror.CategoryNotVerified},
		{"too_many_attempts", autherror.CategoryRateLimited},
		{"invalid_code", autherror.CategoryInvalidCode},
		{"code_expired", autherror.CategoryCodeExpired},
		{"username_taken", autherror.CategoryUsernameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := autherror.FromError(fakeapi.APIError(tt.code, "server says no"))
			require.Equal(t, tt.category, e.Category)
			require.Equal(t, tt.code, e.Code)
			require.Equal(t, "server says no", e.Message)
			require.ErrorIs(t, e, apiclient.ErrAPI)
		})
	}
}

func TestFromError_UnknownStructuredCodeIsUnrecognized(t *testing.T) {
	// The message would match a keyword, but structured payloads never go through the heuristic.
	e := autherror.FromError(fakeapi.APIError("quota_exceeded", "Too many uploads"))
	require.Equal(t, autherror.CategoryUnrecognized, e.Category)
	require.Equal(t, "quota_exceeded", e.Code)
	require.Equal(t, "Too many uploads", e.Raw)
}

func TestFromError_KeywordFallback(t *testing.T) {
	tests := []struct {
		message  string
		category autherror.Category
	}{
		{"Invalid credentials provided", autherror.CategoryInvalidCredentials},
		{"User not found", autherror.CategoryNotFound},
		{"Account is locked for 15 minutes", autherror.CategoryAccountLocked},
		{"Email has not been verified", autherror.CategoryNotVerified},
		{"Too many login attempts", autherror.CategoryRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			e := autherror.FromError(fakeapi.StatusError(apiclient.KindHTTP, 400, tt.message))
			require.Equal(t, tt.category, e.Category)
			require.Equal(t, tt.message, e.Message)
		})
	}

	t.Run("no keyword", func(t *testing.T) {
		e := autherror.FromError(fakeapi.StatusError(apiclient.KindHTTP, 400, "Ungültige Anmeldedaten"))
		require.Equal(t, autherror.CategoryUnrecognized, e.Category)
		require.Equal(t, "Ungültige Anmeldedaten", e.Raw)
	})
}

func TestFromError_StatusKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category autherror.Category
	}{
		{"unauthorized", fakeapi.StatusError(apiclient.KindUnauthorized, 401, ""), autherror.CategoryUnauthorized},
		{"unauthorized with keyword", fakeapi.StatusError(apiclient.KindUnauthorized, 401, "Invalid credentials"), autherror.CategoryInvalidCredentials},
		{"forbidden", fakeapi.StatusError(apiclient.KindForbidden, 403, ""), autherror.CategoryForbidden},
		{"forbidden locked", fakeapi.StatusError(apiclient.KindForbidden, 403, "Account locked"), autherror.CategoryAccountLocked},
		{"not found", fakeapi.StatusError(apiclient.KindNotFound, 404, ""), autherror.CategoryNotFound},
		{"validation", fakeapi.StatusError(apiclient.KindValidation, 422, "bad"), autherror.CategoryValidation},
		{"server", fakeapi.StatusError(apiclient.KindServerError, 502, ""), autherror.CategoryServer},
		{"429", fakeapi.StatusError(apiclient.KindHTTP, 429, ""), autherror.CategoryRateLimited},
		{"network", fakeapi.NetworkError(errors.New("dial tcp: refused")), autherror.CategoryNetwork},
		{"decoding", &apiclient.HTTPError{Kind: apiclient.KindDecoding, Cause: errors.New("bad json")}, autherror.CategoryProtocol},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), autherror.CategoryNetwork},
		{"incomplete login", autherrors.ErrIncompleteLogin, autherror.CategoryProtocol},
		{"anything else", errors.New("boom"), autherror.CategoryUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := autherror.FromError(tt.err)
			require.Equal(t, tt.category, e.Category)
			require.NotEmpty(t, e.Message)
		})
	}
}

func TestValidation(t *testing.T) {
	e := autherror.Validation("Passwords do not match")
	require.Equal(t, autherror.CategoryValidation, e.Category)
	require.ErrorIs(t, e, autherrors.ErrValidation)
	require.Same(t, e, autherror.FromError(e))
	require.ErrorIs(t, fmt.Errorf("outer: %w", e), autherror.New(autherror.CategoryValidation, "", ""))
}
