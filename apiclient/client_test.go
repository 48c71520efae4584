package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type testHTTPConfig struct {
	baseURL string
	timeout time.Duration
}

func (c testHTTPConfig) GetBaseURL() string                { return c.baseURL }
func (c testHTTPConfig) GetRequestTimeout() time.Duration  { return c.timeout }
func (c testHTTPConfig) GetResourceTimeout() time.Duration { return 2 * c.timeout }
func (c testHTTPConfig) GetUserAgent() string              { return "client-test" }

var _ config.HTTPConfig = testHTTPConfig{}

type staticTokens struct {
	token *oauth2.Token
	err   error
}

func (s staticTokens) Token() (*oauth2.Token, error) { return s.token, s.err }

func newTestClient(t *testing.T, handler http.HandlerFunc, options ...apiclient.ClientOption) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := apiclient.NewClient(testHTTPConfig{baseURL: srv.URL, timeout: 2 * time.Second}, options...)
	require.NoError(t, err)
	return c
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestClient_DecodesSuccessBody(t *testing.T) {
	var gotBody map[string]any
	var gotPath, gotContentType, gotRequestID string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		respond(http.StatusOK, `{"success":true,"requires_2fa":true,"available_methods":["email","totp"]}`)(w, r)
	}, apiclient.WithRequestIDFunc(func() string { return "req-1" }))

	var out apiclient.LoginResponse
	resp, err := c.Do(context.Background(), apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteLogin,
		Body:   apiclient.LoginRequest{Identifier: "alice", Password: "pw123456", RememberDevice: true},
	}, &out)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "req-1", resp.RequestID)
	require.Equal(t, "/api/auth/login/", gotPath)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "req-1", gotRequestID)
	require.Equal(t, "alice", gotBody["identifier"])
	require.Equal(t, true, gotBody["remember_device"])
	require.NotContains(t, gotBody, "chosen_method")

	require.True(t, out.Success)
	require.True(t, out.Requires2FA)
	require.Len(t, out.AvailableMethods, 2)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    apiclient.ErrorKind
		target  error
		message string
	}{
		{"structured 400", 400, `{"error":{"code":"invalid_credentials","message":"Invalid credentials"}}`, apiclient.KindAPI, apiclient.ErrAPI, "Invalid credentials"},
		{"plain 400", 400, `{"detail":"Bad things"}`, apiclient.KindHTTP, apiclient.ErrHTTP, "Bad things"},
		{"string error 400", 400, `{"error":"Account locked"}`, apiclient.KindHTTP, apiclient.ErrHTTP, "Account locked"},
		{"non json 400", 400, `oops`, apiclient.KindHTTP, apiclient.ErrHTTP, "oops"},
		{"unauthorized", 401, `{"detail":"Token expired"}`, apiclient.KindUnauthorized, apiclient.ErrUnauthorized, "Token expired"},
		{"forbidden", 403, ``, apiclient.KindForbidden, apiclient.ErrForbidden, ""},
		{"not found", 404, ``, apiclient.KindNotFound, apiclient.ErrNotFound, ""},
		{"validation", 422, `{"message":"bad field"}`, apiclient.KindValidation, apiclient.ErrValidation, "bad field"},
		{"server error", 503, ``, apiclient.KindServerError, apiclient.ErrServerError, ""},
		{"teapot", 418, ``, apiclient.KindHTTP, apiclient.ErrHTTP, ""},
		{"rate limited", 429, `{"detail":"Too many attempts"}`, apiclient.KindHTTP, apiclient.ErrHTTP, "Too many attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, respond(tt.status, tt.body))

			resp, err := c.Do(context.Background(), apiclient.Request{Method: http.MethodPost, Path: apiclient.RouteLogin}, &apiclient.LoginResponse{})
			require.Error(t, err)
			require.ErrorIs(t, err, tt.target)
			require.Equal(t, tt.status, resp.StatusCode)

			var httpErr *apiclient.HTTPError
			require.True(t, errors.As(err, &httpErr))
			require.Equal(t, tt.kind, httpErr.Kind)
			require.Equal(t, tt.status, httpErr.StatusCode)
			require.Equal(t, tt.message, httpErr.ServerMessage())
		})
	}
}

func TestClient_LongPlainBodyIsCutOnARuneBoundary(t *testing.T) {
	body := strings.Repeat("x", 199) + "ééé"
	c := newTestClient(t, respond(http.StatusInternalServerError, body))

	_, err := c.Do(context.Background(), apiclient.Request{Method: http.MethodGet, Path: apiclient.RouteProfile}, nil)
	var httpErr *apiclient.HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.True(t, utf8.ValidString(httpErr.Message))
	require.Equal(t, strings.Repeat("x", 199), httpErr.Message)
}

func TestClient_StructuredPayload(t *testing.T) {
	c := newTestClient(t, respond(400, `{"error":{"code":"code_expired","message":"Code has expired"}}`))

	_, err := c.Do(context.Background(), apiclient.Request{Method: http.MethodPost, Path: apiclient.RouteRegisterStep2}, nil)

	var httpErr *apiclient.HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.NotNil(t, httpErr.API)
	require.Equal(t, "code_expired", httpErr.API.Code)
	require.Equal(t, "Code has expired", httpErr.API.Message)
}

func TestClient_TolerateUnauthorized(t *testing.T) {
	c := newTestClient(t, respond(401, `{"detail":"Token is invalid or expired"}`))

	var out apiclient.RefreshResponse
	resp, err := c.Do(context.Background(), apiclient.Request{
		Method:               http.MethodPost,
		Path:                 apiclient.RouteTokenRefresh,
		Body:                 apiclient.RefreshRequest{Refresh: "R"},
		TolerateUnauthorized: true,
	}, &out)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, out.Access)
}

func TestClient_DecodingError(t *testing.T) {
	c := newTestClient(t, respond(200, `{"success":"not-a-bool"}`))

	_, err := c.Do(context.Background(), apiclient.Request{Path: apiclient.RouteProfile}, &apiclient.LoginResponse{})
	require.ErrorIs(t, err, apiclient.ErrDecoding)
}

func TestClient_EmptySuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := c.Do(context.Background(), apiclient.Request{Method: http.MethodPost, Path: apiclient.RouteLogout}, &apiclient.MessageResponse{})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestClient_EncodingError(t *testing.T) {
	c := newTestClient(t, respond(200, `{}`))

	_, err := c.Do(context.Background(), apiclient.Request{Method: http.MethodPost, Path: apiclient.RouteLogin, Body: map[string]any{"bad": make(chan int)}}, nil)
	require.ErrorIs(t, err, apiclient.ErrEncoding)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(respond(200, `{}`))
	srv.Close()

	c, err := apiclient.NewClient(testHTTPConfig{baseURL: srv.URL, timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), apiclient.Request{Path: apiclient.RouteProfile}, nil)
	require.ErrorIs(t, err, apiclient.ErrNetwork)
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c, err := apiclient.NewClient(testHTTPConfig{baseURL: srv.URL, timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), apiclient.Request{Path: apiclient.RouteProfile}, nil)
	require.ErrorIs(t, err, apiclient.ErrNetwork)
}

func TestClient_InvalidBaseURL(t *testing.T) {
	_, err := apiclient.NewClient(testHTTPConfig{baseURL: "not a url", timeout: time.Second})
	require.ErrorIs(t, err, apiclient.ErrInvalidURL)
}

func TestClient_BearerHeader(t *testing.T) {
	var gotAuth string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		respond(http.StatusOK, `{}`)(w, r)
	}

	t.Run("attached for authenticated requests", func(t *testing.T) {
		c := newTestClient(t, handler, apiclient.WithTokenSource(staticTokens{token: &oauth2.Token{AccessToken: "A"}}))
		_, err := c.Do(context.Background(), apiclient.Request{Path: apiclient.RouteProfile, Authenticated: true}, nil)
		require.NoError(t, err)
		require.Equal(t, "Bearer A", gotAuth)
	})

	t.Run("omitted for anonymous requests", func(t *testing.T) {
		c := newTestClient(t, handler, apiclient.WithTokenSource(staticTokens{token: &oauth2.Token{AccessToken: "A"}}))
		_, err := c.Do(context.Background(), apiclient.Request{Method: http.MethodPost, Path: apiclient.RouteLogin}, nil)
		require.NoError(t, err)
		require.Empty(t, gotAuth)
	})

	t.Run("missing token is not an error", func(t *testing.T) {
		c := newTestClient(t, handler, apiclient.WithTokenSource(staticTokens{err: autherrors.ErrNoToken}))
		_, err := c.Do(context.Background(), apiclient.Request{Path: apiclient.RouteProfile, Authenticated: true}, nil)
		require.NoError(t, err)
		require.Empty(t, gotAuth)
	})
}
