package loginflow

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/autherror"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pkg/errors"
)

var twoFactorSteps = []Step{StepEmail2FA, StepTOTP2FA}

// SubmitCredentials sends the identifier and password. Without 2FA the flow
// completes; with 2FA it moves to StepChoose2FA, or straight to the matching
// verification step when the server offers a single method.
func (m *Machine) SubmitCredentials(ctx context.Context, identifier, password string, rememberDevice bool) State {
	identifier = strings.TrimSpace(identifier)
	a, snapshot, ok := m.begin("SubmitCredentials", []Step{StepCredentials}, func(State) *autherror.AuthError {
		switch {
		case identifier == "":
			return autherror.Validation("Please enter your username or email.")
		case password == "":
			return autherror.Validation("Please enter your password.")
		}
		return nil
	})
	if !ok {
		return snapshot
	}
	a.login = pendingLogin{identifier: identifier, password: password, rememberDevice: rememberDevice}

	var resp apiclient.LoginResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteLogin,
		Body:   m.loginRequest(a.login, ""),
	}, &resp); err != nil {
		return m.fail(a, err)
	}
	if !resp.Success {
		return m.fail(a, autherror.FromMessage(resp.Message))
	}

	if resp.Requires2FA {
		methods := knownMethods(resp.AvailableMethods)
		if len(methods) == 0 {
			return m.fail(a, autherror.New(autherror.CategoryProtocol, "no_2fa_methods", "No supported verification method is available for this account."))
		}
		return m.finish(a, func(s *State) {
			m.login = a.login
			s.AvailableMethods = methods
			s.Message = resp.Message
			if len(methods) == 1 {
				s.ChosenMethod = methods[0]
				s.Step = stepForMethod(methods[0])
				return
			}
			s.ChosenMethod = ""
			s.Step = StepChoose2FA
		})
	}

	return m.complete(ctx, a, &resp)
}

// ChooseMethod picks one of the offered second factors. The server answers
// with the verification step to show next.
func (m *Machine) ChooseMethod(ctx context.Context, method session.TwoFactorMethod) State {
	a, snapshot, ok := m.begin("ChooseMethod", []Step{StepChoose2FA}, func(s State) *autherror.AuthError {
		if !slices.Contains(s.AvailableMethods, method) {
			return autherror.Validation("Please choose one of the offered verification methods.")
		}
		return nil
	})
	if !ok {
		return snapshot
	}

	var resp apiclient.LoginResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteLogin,
		Body:   m.loginRequest(a.login, method),
	}, &resp); err != nil {
		return m.fail(a, err)
	}
	if !resp.Success {
		return m.fail(a, autherror.FromMessage(resp.Message))
	}
	if resp.Authenticated() {
		return m.complete(ctx, a, &resp)
	}

	next, err := nextStep(resp.NextStep, method)
	if err != nil {
		return m.fail(a, err)
	}
	return m.finish(a, func(s *State) {
		s.Step = next
		s.ChosenMethod = methodForStep(next)
		s.Message = resp.Message
	})
}

// SubmitTwoFactorCode verifies code against the endpoint for the current
// step. When the server accepts the code but omits the user or tokens, one
// complete-login call is made before giving up.
func (m *Machine) SubmitTwoFactorCode(ctx context.Context, code string) State {
	code = strings.TrimSpace(code)
	a, snapshot, ok := m.begin("SubmitTwoFactorCode", twoFactorSteps, func(State) *autherror.AuthError {
		if !isDigits(code, m.codeLength) {
			return autherror.Validation(fmt.Sprintf("Please enter the %d-digit code.", m.codeLength))
		}
		return nil
	})
	if !ok {
		return snapshot
	}

	path := apiclient.RouteVerifyEmail2FA
	if a.from == StepTOTP2FA {
		path = apiclient.RouteVerifyTOTP2FA
	}

	var resp apiclient.LoginResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   path,
		Body: apiclient.TwoFactorVerifyRequest{
			Identifier:     a.login.identifier,
			Code:           code,
			RememberDevice: a.login.rememberDevice,
			DeviceID:       m.deviceIDFor(a.login),
		},
	}, &resp); err != nil {
		return m.fail(a, err)
	}
	if !resp.Success {
		return m.fail(a, autherror.FromMessage(resp.Message))
	}
	if resp.Authenticated() {
		return m.complete(ctx, a, &resp)
	}

	m.logger.Debug().Stringer("step", a.from).Msg("code accepted without session payload, completing login")
	var completed apiclient.LoginResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteLoginComplete,
		Body: apiclient.CompleteLoginRequest{
			Identifier: a.login.identifier,
			Method:     methodForStep(a.from),
		},
	}, &completed); err != nil {
		return m.fail(a, err)
	}
	return m.complete(ctx, a, &completed)
}

// ResendCode asks the server to send another code for the chosen method.
func (m *Machine) ResendCode(ctx context.Context) State {
	a, snapshot, ok := m.begin("ResendCode", twoFactorSteps, nil)
	if !ok {
		return snapshot
	}

	var resp apiclient.MessageResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteResend2FACode,
		Body: apiclient.ResendCodeRequest{
			Identifier: a.login.identifier,
			Method:     methodForStep(a.from),
		},
	}, &resp); err != nil {
		return m.fail(a, err)
	}
	if !resp.Success {
		return m.fail(a, autherror.FromMessage(resp.Message))
	}
	return m.finish(a, func(s *State) {
		s.Message = resp.Message
	})
}

// GoBack moves one step towards StepCredentials. It does nothing at
// StepCredentials, at StepComplete, or while a request is in flight.
func (m *Machine) GoBack() State {
	m.lock.Lock()
	from := m.state.Step
	if m.state.IsPending {
		snapshot := m.state.clone()
		m.lock.Unlock()
		return snapshot
	}

	switch from {
	case StepChoose2FA:
		m.backToCredentialsLocked()
	case StepEmail2FA, StepTOTP2FA:
		if len(m.state.AvailableMethods) > 1 {
			m.state.Step = StepChoose2FA
			m.state.ChosenMethod = ""
			m.state.LastError = nil
			m.state.Message = ""
		} else {
			m.backToCredentialsLocked()
		}
	default:
		snapshot := m.state.clone()
		m.lock.Unlock()
		return snapshot
	}
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	m.logger.Debug().Str("op", "GoBack").Stringer("from", from).Stringer("to", snapshot.Step).Msg("login transition")
	notify(observers, snapshot)
	return snapshot
}

func (m *Machine) backToCredentialsLocked() {
	m.state = State{Step: StepCredentials}
	m.login = pendingLogin{}
}

// complete saves the tokens from resp and moves the flow to StepComplete.
func (m *Machine) complete(ctx context.Context, a attempt, resp *apiclient.LoginResponse) State {
	if !resp.Success {
		return m.fail(a, autherror.FromMessage(resp.Message))
	}
	if !resp.Authenticated() {
		return m.fail(a, errors.Wrap(autherrors.ErrIncompleteLogin, "[Machine.complete] response carried no user or tokens"))
	}
	if err := m.store.Save(ctx, resp.Tokens.Access, resp.Tokens.Refresh); err != nil {
		return m.fail(a, errors.Wrap(err, "[Machine.complete] failed to save tokens"))
	}

	sess := &session.Session{User: *resp.User, AuthenticatedAt: m.nowTime()}
	return m.finish(a, func(s *State) {
		m.login = pendingLogin{}
		*s = State{
			Step:             StepComplete,
			AvailableMethods: s.AvailableMethods,
			ChosenMethod:     s.ChosenMethod,
			Session:          sess,
			Message:          resp.Message,
		}
	})
}

func (m *Machine) loginRequest(l pendingLogin, chosen session.TwoFactorMethod) apiclient.LoginRequest {
	return apiclient.LoginRequest{
		Identifier:     l.identifier,
		Password:       l.password,
		RememberDevice: l.rememberDevice,
		DeviceID:       m.deviceIDFor(l),
		ChosenMethod:   chosen,
	}
}

func (m *Machine) deviceIDFor(l pendingLogin) string {
	if !l.rememberDevice {
		return ""
	}
	return m.deviceID
}

// knownMethods keeps the methods this client can verify, in server order, without duplicates.
func knownMethods(in []session.TwoFactorMethod) []session.TwoFactorMethod {
	out := make([]session.TwoFactorMethod, 0, len(in))
	for _, method := range in {
		if method.Valid() && !slices.Contains(out, method) {
			out = append(out, method)
		}
	}
	return out
}

func nextStep(declared string, chosen session.TwoFactorMethod) (Step, error) {
	switch declared {
	case apiclient.NextStepEmail2FA:
		return StepEmail2FA, nil
	case apiclient.NextStepTOTP2FA:
		return StepTOTP2FA, nil
	case "":
		return stepForMethod(chosen), nil
	}
	return StepChoose2FA, autherror.New(autherror.CategoryProtocol, "unknown_next_step", "")
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
