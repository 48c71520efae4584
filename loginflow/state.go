package loginflow

import (
	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/session"
)

// Step is the login flow discriminant.
type Step int

const (
	StepCredentials Step = iota
	StepChoose2FA
	StepEmail2FA
	StepTOTP2FA
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepCredentials:
		return "credentials"
	case StepChoose2FA:
		return "choose_2fa"
	case StepEmail2FA:
		return "email_2fa"
	case StepTOTP2FA:
		return "totp_2fa"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// State is a snapshot of the login flow. Snapshots are copies; mutating one
// has no effect on the machine.
//
// Invariants:
//   - StepChoose2FA implies len(AvailableMethods) > 1
//   - StepEmail2FA and StepTOTP2FA imply ChosenMethod matches the step
//   - StepComplete implies Session != nil
type State struct {
	Step             Step
	AvailableMethods []session.TwoFactorMethod
	ChosenMethod     session.TwoFactorMethod
	LastError        *autherror.AuthError
	IsPending        bool
	Session          *session.Session

	// Message is the last informational text from the server, e.g. "code sent".
	Message string
}

func (s State) clone() State {
	out := s
	if s.AvailableMethods != nil {
		out.AvailableMethods = append([]session.TwoFactorMethod(nil), s.AvailableMethods...)
	}
	if s.Session != nil {
		sess := *s.Session
		if sess.User.TwoFactorMethods != nil {
			sess.User.TwoFactorMethods = append([]string(nil), sess.User.TwoFactorMethods...)
		}
		out.Session = &sess
	}
	return out
}

func stepForMethod(m session.TwoFactorMethod) Step {
	if m == session.MethodTOTP {
		return StepTOTP2FA
	}
	return StepEmail2FA
}

func methodForStep(s Step) session.TwoFactorMethod {
	if s == StepTOTP2FA {
		return session.MethodTOTP
	}
	return session.MethodEmail
}
