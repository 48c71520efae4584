package registration

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/autherror"
)

// SetUsername records an edit of the username field without probing the
// server. Any availability answer for a different value stops counting.
func (m *Machine) SetUsername(username string) State {
	username = strings.TrimSpace(username)
	m.lock.Lock()
	if m.state.Step != StepUsername || m.state.Fields.Username == username {
		snapshot := m.state.clone()
		m.lock.Unlock()
		return snapshot
	}
	m.state.Fields.Username = username
	m.state.UsernameCheck.Available = false
	m.state.UsernameCheck.Message = ""
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	notify(observers, snapshot)
	return snapshot
}

// CheckUsernameAvailability probes the server for username. It never moves
// the flow; ContinueFromUsername does that once the probe says the current
// value is free. Callers are expected to debounce edits (see Debouncer).
//
// Several probes may be in flight. An answer is applied only when the
// username it echoes is still the current field value.
func (m *Machine) CheckUsernameAvailability(ctx context.Context, username string) State {
	username = strings.TrimSpace(username)

	m.lock.Lock()
	if m.state.Step != StepUsername {
		snapshot := m.state.clone()
		m.lock.Unlock()
		return snapshot
	}
	if username == "" {
		m.state.Fields.Username = ""
		m.state.UsernameCheck = UsernameCheck{Checking: m.checksInFlight > 0}
		snapshot, observers := m.snapshotLocked()
		m.lock.Unlock()
		notify(observers, snapshot)
		return snapshot
	}
	if m.state.UsernameCheck.Checking && m.state.Fields.Username == username {
		snapshot := m.state.clone()
		m.lock.Unlock()
		m.logger.Debug().Str("username", username).Msg("availability check already running, ignoring")
		return snapshot
	}

	m.state.Fields.Username = username
	m.state.UsernameCheck.Checking = true
	m.state.UsernameCheck.Available = false
	m.state.UsernameCheck.Message = ""
	m.checksInFlight++
	epoch := m.epoch
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()
	notify(observers, snapshot)

	var resp apiclient.CheckUsernameResponse
	_, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteCheckUsername,
		Body:   apiclient.CheckUsernameRequest{Username: username},
	}, &resp)

	echoed := username
	if err == nil && resp.Username != "" {
		echoed = resp.Username
	}

	m.lock.Lock()
	if epoch != m.epoch {
		snapshot := m.state.clone()
		m.lock.Unlock()
		return snapshot
	}
	m.checksInFlight--
	check := &m.state.UsernameCheck
	check.Checking = m.checksInFlight > 0

	if echoed != m.state.Fields.Username {
		snapshot, observers := m.snapshotLocked()
		m.lock.Unlock()
		m.logger.Debug().Str("username", echoed).Msg("discarding stale availability answer")
		notify(observers, snapshot)
		return snapshot
	}

	if err != nil {
		authErr := autherror.FromError(err)
		check.Available = false
		check.Message = authErr.Message
		m.state.LastError = authErr
	} else {
		check.Available = resp.Available
		check.Message = resp.Message
		check.LastCheckedValue = echoed
		m.state.LastError = nil
	}
	snapshot, observers = m.snapshotLocked()
	m.lock.Unlock()

	m.logger.Debug().Str("username", echoed).Bool("available", snapshot.UsernameCheck.Available).Msg("username availability")
	notify(observers, snapshot)
	return snapshot
}

// ContinueFromUsername advances to StepPassword when the last probe says the
// current username is available. Otherwise the step stays and LastError is set.
func (m *Machine) ContinueFromUsername() State {
	return m.local("ContinueFromUsername", []Step{StepUsername}, func(s *State) *autherror.AuthError {
		if !s.usernameReady() {
			if s.UsernameCheck.Checking {
				return autherror.Validation("Still checking that username.")
			}
			return autherror.Validation("Please choose an available username.")
		}
		s.Step = StepPassword
		return nil
	})
}

// UsernameDebouncer returns a Debouncer that records every edit immediately
// and probes availability once edits settle for the configured quiet period.
func (m *Machine) UsernameDebouncer(ctx context.Context) *Debouncer {
	d := NewDebouncer(m.debounce, func(username string) {
		m.CheckUsernameAvailability(ctx, username)
	})
	d.onUpdate = func(username string) {
		m.SetUsername(username)
	}
	return d
}
