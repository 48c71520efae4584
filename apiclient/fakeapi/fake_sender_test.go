package fakeapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/apiclient/fakeapi"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, f *fakeapi.FakeSender, path string) (apiclient.MessageResponse, error) {
	t.Helper()
	var out apiclient.MessageResponse
	_, err := f.Do(context.Background(), apiclient.Request{Method: http.MethodPost, Path: path, Body: map[string]string{"k": "v"}}, &out)
	return out, err
}

func TestFakeSenderQueue(t *testing.T) {
	f := fakeapi.NewFakeSender()
	f.Reply("/a", apiclient.MessageResponse{Success: true, Message: "first"})
	f.Reply("/a", apiclient.MessageResponse{Success: true, Message: "second"})

	out, err := send(t, f, "/a")
	require.NoError(t, err)
	require.Equal(t, "first", out.Message)

	out, err = send(t, f, "/a")
	require.NoError(t, err)
	require.Equal(t, "second", out.Message)

	out, err = send(t, f, "/a")
	require.NoError(t, err)
	require.Equal(t, "second", out.Message, "last handler keeps answering")

	f.Reply("/a", apiclient.MessageResponse{Success: true, Message: "third"})
	out, err = send(t, f, "/a")
	require.NoError(t, err)
	require.Equal(t, "third", out.Message, "new handler replaces the sticky one")

	calls := f.Calls("/a")
	require.Len(t, calls, 4)
	var body map[string]string
	require.NoError(t, calls[0].Decode(&body))
	require.Equal(t, "v", body["k"])
}

func TestFakeSenderErrors(t *testing.T) {
	f := fakeapi.NewFakeSender()

	_, err := send(t, f, "/missing")
	require.ErrorIs(t, err, apiclient.ErrNotFound)

	f.Fail("/refresh", fakeapi.StatusError(apiclient.KindUnauthorized, http.StatusUnauthorized, ""))
	resp, err := f.Do(context.Background(), apiclient.Request{Path: "/refresh", TolerateUnauthorized: true}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err = f.Do(context.Background(), apiclient.Request{Path: "/refresh"}, nil)
	require.ErrorIs(t, err, apiclient.ErrUnauthorized)
}
