package registration

import (
	"time"

	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/session"
)

// Step is the registration flow discriminant. Steps are ordered.
type Step int

const (
	StepEmail Step = iota
	StepVerification
	StepPersonalInfo
	StepUsername
	StepPassword
	StepSummary
	StepComplete
)

var stepNames = [...]string{"email", "verification", "personal_info", "username", "password", "summary", "complete"}

func (s Step) String() string {
	if s < StepEmail || s > StepComplete {
		return "unknown"
	}
	return stepNames[s]
}

// Fields holds everything the user has entered. Nothing is discarded when
// moving between steps.
type Fields struct {
	Email            string
	TempID           string
	VerificationCode string
	FirstName        string
	LastName         string
	DateOfBirth      time.Time
	Username         string
	Password1        string
	Password2        string
}

// UsernameCheck tracks the availability probe independently of Step.
type UsernameCheck struct {
	Checking         bool
	Available        bool
	Message          string
	LastCheckedValue string
}

// State is a snapshot of the registration flow.
type State struct {
	Step          Step
	Fields        Fields
	UsernameCheck UsernameCheck
	LastError     *autherror.AuthError
	IsPending     bool

	// CodeSent and EmailVerified record the two server-confirmed gates so
	// that NextStep can move forward again after PreviousStep.
	CodeSent      bool
	EmailVerified bool

	Session *session.Session
	Message string
}

func (s State) clone() State {
	out := s
	if s.Session != nil {
		sess := *s.Session
		if sess.User.TwoFactorMethods != nil {
			sess.User.TwoFactorMethods = append([]string(nil), sess.User.TwoFactorMethods...)
		}
		out.Session = &sess
	}
	return out
}

// usernameReady reports whether the availability gate is satisfied for the
// current username.
func (s State) usernameReady() bool {
	return s.Fields.Username != "" &&
		!s.UsernameCheck.Checking &&
		s.UsernameCheck.Available &&
		s.UsernameCheck.LastCheckedValue == s.Fields.Username
}
