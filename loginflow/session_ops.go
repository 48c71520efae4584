package loginflow

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pkg/errors"
)

// Logout notifies the server when a refresh token is stored, then clears the
// credential store and resets the flow. Local state is always cleared, even
// when the server call or the store fails.
func (m *Machine) Logout(ctx context.Context) State {
	refresh, err := m.store.LoadRefresh(ctx)
	switch {
	case err == nil:
		var resp apiclient.MessageResponse
		if _, err := m.api.Do(ctx, apiclient.Request{
			Method:        http.MethodPost,
			Path:          apiclient.RouteLogout,
			Body:          apiclient.RefreshRequest{Refresh: refresh},
			Authenticated: true,
		}, &resp); err != nil {
			m.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	case !errors.Is(err, credentials.ErrNoToken):
		m.logger.Warn().Err(err).Msg("failed to read refresh token for logout")
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error().Err(err).Msg("failed to clear credential store")
	}

	m.logger.Debug().Str("op", "Logout").Msg("login flow reset")
	return m.reset()
}

// Restore resumes a session from stored tokens. When an access token is
// stored the profile is fetched; an expired token is refreshed once. On an
// authorization failure the store is cleared and the flow stays at
// StepCredentials. Transport failures keep the tokens and set LastError.
func (m *Machine) Restore(ctx context.Context) State {
	if _, err := m.store.LoadAccess(ctx); err != nil {
		if !errors.Is(err, credentials.ErrNoToken) {
			m.logger.Warn().Err(err).Msg("failed to read stored access token")
		}
		return m.State()
	}

	a, snapshot, ok := m.begin("Restore", []Step{StepCredentials}, nil)
	if !ok {
		return snapshot
	}

	user, err := m.fetchProfile(ctx)
	if errors.Is(err, apiclient.ErrUnauthorized) {
		refreshed, refreshErr := m.RefreshSession(ctx)
		switch {
		case refreshErr != nil:
			err = refreshErr
		case refreshed:
			user, err = m.fetchProfile(ctx)
		}
	}

	if err != nil {
		// Decided on the HTTP status alone; the server message is not consulted.
		if errors.Is(err, apiclient.ErrUnauthorized) || errors.Is(err, apiclient.ErrForbidden) {
			if clearErr := m.store.Clear(ctx); clearErr != nil {
				m.logger.Error().Err(clearErr).Msg("failed to clear rejected credentials")
			}
			m.logger.Info().Msg("stored session rejected by server, credentials cleared")
			return m.finish(a, func(*State) {})
		}
		return m.fail(a, err)
	}

	sess := &session.Session{User: user, AuthenticatedAt: m.nowTime()}
	return m.finish(a, func(s *State) {
		*s = State{Step: StepComplete, Session: sess}
	})
}

// RefreshSession exchanges the stored refresh token for a new access token.
// A 401 from the server is not an error: it reports false and the caller
// decides whether to log out. Nothing stored also reports false.
func (m *Machine) RefreshSession(ctx context.Context) (bool, error) {
	refresh, err := m.store.LoadRefresh(ctx)
	if errors.Is(err, credentials.ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Machine.RefreshSession] failed to load refresh token")
	}

	var out apiclient.RefreshResponse
	resp, err := m.api.Do(ctx, apiclient.Request{
		Method:               http.MethodPost,
		Path:                 apiclient.RouteTokenRefresh,
		Body:                 apiclient.RefreshRequest{Refresh: refresh},
		TolerateUnauthorized: true,
	}, &out)
	if err != nil {
		return false, errors.Wrap(err, "[Machine.RefreshSession] refresh request failed")
	}
	if resp != nil && resp.StatusCode == http.StatusUnauthorized {
		m.logger.Debug().Msg("refresh token rejected")
		return false, nil
	}
	if out.Access == "" {
		return false, autherror.New(autherror.CategoryProtocol, "empty_refresh_response", "")
	}

	if out.Refresh != "" {
		refresh = out.Refresh
	}
	if err := m.store.Save(ctx, out.Access, refresh); err != nil {
		return false, errors.Wrap(err, "[Machine.RefreshSession] failed to save tokens")
	}
	return true, nil
}

func (m *Machine) fetchProfile(ctx context.Context) (session.User, error) {
	var resp apiclient.ProfileResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method:        http.MethodGet,
		Path:          apiclient.RouteProfile,
		Authenticated: true,
	}, &resp); err != nil {
		return session.User{}, err
	}
	return resp.User, nil
}
