package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-auth-client/apiclient"
)

// Handler produces the response for one scripted call. body is the JSON the
// caller would have put on the wire.
type Handler func(ctx context.Context, body json.RawMessage) (any, error)

// Call records a request seen by the fake.
type Call struct {
	Method        string
	Path          string
	Body          json.RawMessage
	Authenticated bool
}

// Decode unmarshals the recorded body into v.
func (c Call) Decode(v any) error {
	return json.Unmarshal(c.Body, v)
}

var _ apiclient.Sender = (*FakeSender)(nil)

// FakeSender is a scripted apiclient.Sender. Handlers queued for a path
// are consumed in order; the last one keeps answering until another is
// queued. A fallback answers only while nothing is queued.
type FakeSender struct {
	lock      sync.Mutex
	handlers  map[string][]Handler
	sticky    map[string]bool // the only queued handler has answered at least once
	fallbacks map[string]Handler
	calls     []Call
}

func NewFakeSender() *FakeSender {
	return &FakeSender{
		handlers:  make(map[string][]Handler),
		sticky:    make(map[string]bool),
		fallbacks: make(map[string]Handler),
	}
}

// Fallback sets the handler used for path when no handler is queued.
func (f *FakeSender) Fallback(path string, h Handler) *FakeSender {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.fallbacks[path] = h
	return f
}

// On queues a handler for path. A handler that is only still queued because
// it was the last one is replaced.
func (f *FakeSender) On(path string, h Handler) *FakeSender {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.sticky[path] {
		f.handlers[path] = nil
		f.sticky[path] = false
	}
	f.handlers[path] = append(f.handlers[path], h)
	return f
}

// Reply queues a fixed successful response for path.
func (f *FakeSender) Reply(path string, resp any) *FakeSender {
	return f.On(path, Respond(resp))
}

// Respond wraps a fixed response as a Handler.
func Respond(resp any) Handler {
	return func(context.Context, json.RawMessage) (any, error) {
		return resp, nil
	}
}

// Fail queues a fixed error for path.
func (f *FakeSender) Fail(path string, err error) *FakeSender {
	return f.On(path, func(context.Context, json.RawMessage) (any, error) {
		return nil, err
	})
}

// Calls returns the recorded calls for path, or every call when path is empty.
func (f *FakeSender) Calls(path string) []Call {
	f.lock.Lock()
	defer f.lock.Unlock()

	var out []Call
	for _, c := range f.calls {
		if path == "" || c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Do implements apiclient.Sender.
func (f *FakeSender) Do(ctx context.Context, req apiclient.Request, out any) (*apiclient.Response, error) {
	var body json.RawMessage
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &apiclient.HTTPError{Kind: apiclient.KindEncoding, Cause: err}
		}
		body = raw
	}

	f.lock.Lock()
	f.calls = append(f.calls, Call{Method: req.Method, Path: req.Path, Body: body, Authenticated: req.Authenticated})
	h := f.next(req.Path)
	f.lock.Unlock()

	if h == nil {
		return &apiclient.Response{StatusCode: http.StatusNotFound}, &apiclient.HTTPError{Kind: apiclient.KindNotFound, StatusCode: http.StatusNotFound}
	}

	resp, err := h(ctx, body)
	if err != nil {
		status := 0
		if httpErr, ok := err.(*apiclient.HTTPError); ok {
			status = httpErr.StatusCode
			if status == http.StatusUnauthorized && req.TolerateUnauthorized {
				return &apiclient.Response{StatusCode: status}, nil
			}
		}
		return &apiclient.Response{StatusCode: status}, err
	}

	if out != nil && resp != nil {
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, &apiclient.HTTPError{Kind: apiclient.KindEncoding, Cause: err}
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &apiclient.Response{StatusCode: http.StatusOK}, &apiclient.HTTPError{Kind: apiclient.KindDecoding, StatusCode: http.StatusOK, Cause: err}
		}
	}
	return &apiclient.Response{StatusCode: http.StatusOK}, nil
}

func (f *FakeSender) next(path string) Handler {
	queue := f.handlers[path]
	switch len(queue) {
	case 0:
		return f.fallbacks[path]
	case 1:
		f.sticky[path] = true
		return queue[0]
	default:
		f.handlers[path] = queue[1:]
		return queue[0]
	}
}

// APIError builds the 400 {"error":{"code","message"}} failure.
func APIError(code, message string) *apiclient.HTTPError {
	return &apiclient.HTTPError{
		Kind:       apiclient.KindAPI,
		StatusCode: http.StatusBadRequest,
		API:        &apiclient.APIErrorPayload{Code: code, Message: message},
		Message:    message,
	}
}

// StatusError builds the failure the real client produces for a bare status code.
func StatusError(kind apiclient.ErrorKind, status int, message string) *apiclient.HTTPError {
	return &apiclient.HTTPError{Kind: kind, StatusCode: status, Message: message}
}

// NetworkError builds a transport failure.
func NetworkError(cause error) *apiclient.HTTPError {
	return &apiclient.HTTPError{Kind: apiclient.KindNetwork, Cause: cause}
}
