package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	maxResponseBytes = 1 << 20
	headerRequestID  = "X-Request-ID"
	contentTypeJSON  = "application/json"
)

// Request describes one call to the backend.
type Request struct {
	Method string
	Path   string
	Body   any

	// Authenticated attaches the stored access token when one exists.
	Authenticated bool

	// TolerateUnauthorized turns a 401 into a successful, empty response.
	// Only the session-refresh endpoint uses it.
	TolerateUnauthorized bool
}

// Response carries transport metadata for a completed request.
type Response struct {
	StatusCode int
	RequestID  string
}

// Sender executes a request and decodes a 2xx body into out. Every failure is an *HTTPError.
type Sender interface {
	Do(ctx context.Context, req Request, out any) (*Response, error)
}

// Client is the net/http implementation of Sender.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	tokens         oauth2.TokenSource
	requestTimeout time.Duration
	userAgent      string
	logger         zerolog.Logger
	newRequestID   func() string
}

var _ Sender = (*Client)(nil)

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client (its Timeout is left untouched).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource supplies the bearer token for authenticated requests.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRequestIDFunc overrides X-Request-ID generation (primarily for testing).
func WithRequestIDFunc(fn func() string) ClientOption {
	return func(c *Client) {
		c.newRequestID = fn
	}
}

// NewClient builds a Client for cfg.GetBaseURL().
func NewClient(cfg config.HTTPConfig, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[NewClient] config is required")
	}
	base, err := url.Parse(cfg.GetBaseURL())
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &HTTPError{Kind: KindInvalidURL, Cause: errors.Errorf("[NewClient] invalid base url %q", cfg.GetBaseURL())}
	}

	c := &Client{
		baseURL:        base,
		httpClient:     &http.Client{Timeout: cfg.GetResourceTimeout()},
		requestTimeout: cfg.GetRequestTimeout(),
		userAgent:      cfg.GetUserAgent(),
		logger:         log.Logger,
		newRequestID:   func() string { return uuid.New().String() },
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Do implements Sender.
func (c *Client) Do(ctx context.Context, req Request, out any) (*Response, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	httpReq, requestID, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Str("request_id", requestID).Msg("api request failed")
		return nil, &HTTPError{Kind: KindNetwork, Cause: err}
	}
	defer httpResp.Body.Close()

	resp := &Response{StatusCode: httpResp.StatusCode, RequestID: requestID}
	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(started)).
		Msg("api request")

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return resp, &HTTPError{Kind: KindInvalidResponse, StatusCode: httpResp.StatusCode, Cause: err}
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode <= 299 {
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return resp, nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resp, &HTTPError{Kind: KindDecoding, StatusCode: httpResp.StatusCode, Cause: err}
		}
		return resp, nil
	}

	if httpResp.StatusCode == http.StatusUnauthorized && req.TolerateUnauthorized {
		return resp, nil
	}

	return resp, statusError(httpResp.StatusCode, body)
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, string, error) {
	ref, err := url.Parse(req.Path)
	if err != nil {
		return nil, "", &HTTPError{Kind: KindInvalidURL, Cause: err}
	}
	target := c.baseURL.JoinPath(ref.Path)
	target.RawQuery = ref.RawQuery

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", &HTTPError{Kind: KindEncoding, Cause: err}
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, "", &HTTPError{Kind: KindInvalidURL, Cause: err}
	}

	requestID := c.newRequestID()
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set(headerRequestID, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.Authenticated {
		c.attachToken(httpReq)
	}
	return httpReq, requestID, nil
}

// attachToken adds the bearer header when a token is stored. A missing token
// is not an error here; the server decides whether the call needed one.
func (c *Client) attachToken(httpReq *http.Request) {
	if c.tokens == nil {
		return
	}
	tok, err := c.tokens.Token()
	if err != nil {
		if !autherrors.Is(err, autherrors.ErrNoToken) {
			c.logger.Debug().Err(err).Msg("token source unavailable, sending request without bearer")
		}
		return
	}
	if tok == nil || tok.AccessToken == "" {
		return
	}
	tok.SetAuthHeader(httpReq)
}

func statusError(status int, body []byte) *HTTPError {
	parsed := parseErrorBody(body)

	if status == http.StatusBadRequest {
		if parsed.api != nil {
			return &HTTPError{Kind: KindAPI, StatusCode: status, API: parsed.api, Message: parsed.api.Message}
		}
		return &HTTPError{Kind: KindHTTP, StatusCode: status, Message: parsed.message}
	}

	return &HTTPError{Kind: errorFromStatus(status), StatusCode: status, Message: parsed.message}
}
