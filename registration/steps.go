package registration

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/session"
)

const dateOfBirthLayout = "2006-01-02"

// SubmitEmail starts the registration; the server emails a verification code.
func (m *Machine) SubmitEmail(ctx context.Context, email string) State {
	email = strings.TrimSpace(email)
	a, snapshot, ok := m.begin("SubmitEmail", []Step{StepEmail}, func(State) *autherror.AuthError {
		if email == "" || !strings.Contains(email, "@") {
			return autherror.Validation("Please enter a valid email address.")
		}
		return nil
	})
	if !ok {
		return snapshot
	}

	var resp apiclient.RegisterStep1Response
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteRegisterStep1,
		Body:   apiclient.RegisterStep1Request{Email: email},
	}, &resp); err != nil {
		return m.fail(a, err)
	}
	if !resp.Success {
		return m.fail(a, autherror.FromMessage(resp.Message))
	}

	return m.finish(a, func(s *State) {
		if resp.Email != "" {
			email = resp.Email
		}
		if s.Fields.Email != email {
			s.EmailVerified = false
			s.Fields.VerificationCode = ""
		}
		s.Fields.Email = email
		s.Fields.TempID = resp.TempID
		s.CodeSent = true
		s.Message = resp.Message
		s.Step = StepVerification
	})
}

// SubmitVerificationCode confirms the emailed code. Wrong and expired codes
// are both reported through LastError.
func (m *Machine) SubmitVerificationCode(ctx context.Context, code string) State {
	code = strings.TrimSpace(code)
	a, snapshot, ok := m.begin("SubmitVerificationCode", []Step{StepVerification}, func(State) *autherror.AuthError {
		if utf8.RuneCountInString(code) != m.codeLength {
			return autherror.Validation(fmt.Sprintf("Please enter the %d-digit code.", m.codeLength))
		}
		return nil
	})
	if !ok {
		return snapshot
	}

	var resp apiclient.RegisterStep2Response
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteRegisterStep2,
		Body: apiclient.RegisterStep2Request{
			Email:            a.state.Fields.Email,
			VerificationCode: code,
			TempID:           a.state.Fields.TempID,
		},
	}, &resp); err != nil {
		return m.fail(a, err)
	}
	if !resp.Success || !resp.EmailVerified {
		if resp.Message == "" {
			return m.fail(a, autherror.New(autherror.CategoryInvalidCode, "", ""))
		}
		return m.fail(a, autherror.FromMessage(resp.Message))
	}

	return m.finish(a, func(s *State) {
		s.Fields.VerificationCode = code
		s.EmailVerified = true
		s.Message = resp.Message
		s.Step = StepPersonalInfo
	})
}

// ResendVerificationCode asks for another email code. The step does not change.
func (m *Machine) ResendVerificationCode(ctx context.Context) State {
	a, snapshot, ok := m.begin("ResendVerificationCode", []Step{StepVerification}, nil)
	if !ok {
		return snapshot
	}

	var resp apiclient.MessageResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteRegisterResendCode,
		Body: apiclient.ResendRegistrationCodeRequest{
			Email:  a.state.Fields.Email,
			TempID: a.state.Fields.TempID,
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

// SubmitPersonalInfo records names and date of birth. Age is the difference
// in calendar years, so someone turning the minimum age later this year
// already passes.
func (m *Machine) SubmitPersonalInfo(firstName, lastName string, dateOfBirth time.Time) State {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	return m.local("SubmitPersonalInfo", []Step{StepPersonalInfo}, func(s *State) *autherror.AuthError {
		if authErr := m.validatePersonalInfo(firstName, lastName, dateOfBirth); authErr != nil {
			return authErr
		}
		s.Fields.FirstName = firstName
		s.Fields.LastName = lastName
		s.Fields.DateOfBirth = dateOfBirth
		s.Step = StepUsername
		return nil
	})
}

// SubmitPassword records both password entries. The account is not created
// until ConfirmSummary.
func (m *Machine) SubmitPassword(password1, password2 string) State {
	return m.local("SubmitPassword", []Step{StepPassword}, func(s *State) *autherror.AuthError {
		if authErr := m.validatePassword(password1, password2); authErr != nil {
			return authErr
		}
		s.Fields.Password1 = password1
		s.Fields.Password2 = password2
		s.Step = StepSummary
		return nil
	})
}

// ConfirmSummary sends every collected field in one request. On failure the
// flow stays at StepSummary so the user can fix a field and resubmit.
func (m *Machine) ConfirmSummary(ctx context.Context) State {
	a, snapshot, ok := m.begin("ConfirmSummary", []Step{StepSummary}, nil)
	if !ok {
		return snapshot
	}

	req := CompletionRequest(a.state.Fields)
	var resp apiclient.RegisterCompleteResponse
	if _, err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteRegisterComplete,
		Body:   req,
	}, &resp); err != nil {
		return m.fail(a, err)
	}
	if !resp.Success {
		return m.fail(a, autherror.FromMessage(resp.Message))
	}

	// The account exists at this point; a store failure must not send the
	// user back to a summary that can no longer be submitted.
	if resp.Tokens.Complete() {
		if err := m.store.Save(ctx, resp.Tokens.Access, resp.Tokens.Refresh); err != nil {
			m.logger.Error().Err(err).Msg("failed to save tokens after registration")
		}
	}

	user := userFromFields(req)
	if resp.User != nil {
		user = *resp.User
	}
	sess := session.Session{User: user, AuthenticatedAt: m.nowTime()}

	state := m.finish(a, func(s *State) {
		s.Session = &sess
		s.Message = resp.Message
		s.Step = StepComplete
	})
	if state.Step == StepComplete && m.onComplete != nil {
		m.onComplete(sess)
	}
	return state
}

// CompletionRequest builds the payload ConfirmSummary sends for f.
func CompletionRequest(f Fields) apiclient.RegisterCompleteRequest {
	dob := ""
	if !f.DateOfBirth.IsZero() {
		dob = f.DateOfBirth.Format(dateOfBirthLayout)
	}
	return apiclient.RegisterCompleteRequest{
		Email:            f.Email,
		VerificationCode: f.VerificationCode,
		TempID:           f.TempID,
		FirstName:        f.FirstName,
		LastName:         f.LastName,
		DateOfBirth:      dob,
		Username:         f.Username,
		Password1:        f.Password1,
		Password2:        f.Password2,
	}
}

func userFromFields(req apiclient.RegisterCompleteRequest) session.User {
	return session.User{
		Username:        req.Username,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		DateOfBirth:     req.DateOfBirth,
		IsEmailVerified: true,
	}
}

// NextStep moves the cursor forward one step when the gate for the current
// step is already satisfied by retained data. Summary only advances through
// ConfirmSummary.
func (m *Machine) NextStep() State {
	return m.local("NextStep", nil, func(s *State) *autherror.AuthError {
		var authErr *autherror.AuthError
		switch s.Step {
		case StepEmail:
			if !s.CodeSent {
				authErr = autherror.Validation("Please submit your email address first.")
			}
		case StepVerification:
			if !s.EmailVerified {
				authErr = autherror.Validation("Please verify your email address first.")
			}
		case StepPersonalInfo:
			authErr = m.validatePersonalInfo(s.Fields.FirstName, s.Fields.LastName, s.Fields.DateOfBirth)
		case StepUsername:
			if !s.usernameReady() {
				authErr = autherror.Validation("Please choose an available username.")
			}
		case StepPassword:
			authErr = m.validatePassword(s.Fields.Password1, s.Fields.Password2)
		case StepSummary:
			authErr = autherror.Validation("Please confirm your details to create the account.")
		case StepComplete:
			return nil
		}
		if authErr != nil {
			return authErr
		}
		s.Step++
		return nil
	})
}

// PreviousStep moves the cursor back one step. It does nothing at StepEmail
// and at StepComplete.
func (m *Machine) PreviousStep() State {
	return m.local("PreviousStep", nil, func(s *State) *autherror.AuthError {
		if s.Step > StepEmail && s.Step < StepComplete {
			s.Step--
			s.Message = ""
		}
		return nil
	})
}

// GoBack is PreviousStep.
func (m *Machine) GoBack() State {
	return m.PreviousStep()
}

func (m *Machine) validatePersonalInfo(firstName, lastName string, dateOfBirth time.Time) *autherror.AuthError {
	switch {
	case firstName == "":
		return autherror.Validation("Please enter your first name.")
	case lastName == "":
		return autherror.Validation("Please enter your last name.")
	case dateOfBirth.IsZero():
		return autherror.Validation("Please enter your date of birth.")
	case m.nowTime().Year()-dateOfBirth.Year() < m.minAge:
		return autherror.Validation(fmt.Sprintf("You must be at least %d years old to register.", m.minAge))
	}
	return nil
}

func (m *Machine) validatePassword(password1, password2 string) *autherror.AuthError {
	switch {
	case password1 != password2:
		return autherror.Validation("Passwords do not match.")
	case utf8.RuneCountInString(password1) < m.minPasswordLength:
		return autherror.Validation(fmt.Sprintf("Password must be at least %d characters.", m.minPasswordLength))
	}
	return nil
}
