package mockapi

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

const minRegistrationAge = 16

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`)

func (s *Server) RegisterStep1Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.RegisterStep1Request
		if !decodeJSON(w, r, &req) {
			return
		}
		email := strings.TrimSpace(req.Email)
		if !strings.Contains(email, "@") {
			writeJSONError(w, "validation_error", "Enter a valid email address.", http.StatusBadRequest)
			return
		}
		if s.users.EmailTaken(email) {
			writeJSONError(w, "email_taken", "An account with this email already exists.", http.StatusBadRequest)
			return
		}
		if !s.sendRegistrationCode(w, email) {
			return
		}

		tempID := uuid.NewString()
		s.mu.Lock()
		s.registrations[tempID] = &pendingRegistration{email: email}
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, apiclient.RegisterStep1Response{
			Success: true,
			Email:   email,
			TempID:  tempID,
			Message: "Verification code sent.",
		})
	}
}

func (s *Server) RegisterStep2Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.RegisterStep2Request
		if !decodeJSON(w, r, &req) {
			return
		}
		reg, ok := s.registration(w, req.TempID, req.Email)
		if !ok {
			return
		}

		switch s.codes.check(PurposeRegister, reg.email, req.VerificationCode, s.nowTime()) {
		case codeExpired:
			writeJSONError(w, "code_expired", "The verification code has expired.", http.StatusBadRequest)
			return
		case codeWrong, codeMissing:
			writeJSONError(w, "invalid_code", "Invalid verification code.", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		if p, found := s.registrations[req.TempID]; found {
			p.verified = true
		}
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, apiclient.RegisterStep2Response{
			Success:       true,
			EmailVerified: true,
			Message:       "Email verified.",
		})
	}
}

func (s *Server) ResendRegistrationCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.ResendRegistrationCodeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		reg, ok := s.registration(w, req.TempID, req.Email)
		if !ok {
			return
		}
		if !s.sendRegistrationCode(w, reg.email) {
			return
		}
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Success: true, Message: "A new code has been sent."})
	}
}

func (s *Server) CheckUsernameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.CheckUsernameRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		available, message := s.usernameAvailable(strings.TrimSpace(req.Username))
		writeJSON(w, http.StatusOK, apiclient.CheckUsernameResponse{
			Username:  req.Username,
			Available: available,
			Message:   message,
		})
	}
}

func (s *Server) RegisterCompleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.RegisterCompleteRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		reg, ok := s.registration(w, req.TempID, req.Email)
		if !ok {
			return
		}
		if !reg.verified {
			writeJSONError(w, "email_not_verified", "Email has not been verified.", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
			writeJSONError(w, "validation_error", "First and last name are required.", http.StatusBadRequest)
			return
		}
		dob, err := time.Parse(time.DateOnly, req.DateOfBirth)
		if err != nil {
			writeJSONError(w, "validation_error", "Date of birth must be YYYY-MM-DD.", http.StatusBadRequest)
			return
		}
		if s.nowTime().Year()-dob.Year() < minRegistrationAge {
			writeJSONError(w, "validation_error", "You must be at least 16 years old.", http.StatusBadRequest)
			return
		}
		if available, message := s.usernameAvailable(req.Username); !available {
			writeJSONError(w, "username_taken", message, http.StatusBadRequest)
			return
		}
		if req.Password1 != req.Password2 {
			writeJSONError(w, "validation_error", "Passwords do not match.", http.StatusBadRequest)
			return
		}
		if err := ValidatePasswordStrength(req.Password1); err != nil {
			writeJSONError(w, "password_too_weak", err.Error(), http.StatusBadRequest)
			return
		}

		user, err := s.users.Create(UserSeed{
			Username:    req.Username,
			Email:       reg.email,
			Password:    req.Password1,
			FirstName:   strings.TrimSpace(req.FirstName),
			LastName:    strings.TrimSpace(req.LastName),
			DateOfBirth: req.DateOfBirth,
		}, s.nowTime(), s.appName)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to create user")
			writeJSONError(w, "username_taken", "This username is already taken.", http.StatusBadRequest)
			return
		}
		tokens, err := s.tokens.issue(user.Profile.ID)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to issue tokens")
			writeJSONError(w, "server_error", "Could not create a session.", http.StatusInternalServerError)
			return
		}

		s.mu.Lock()
		delete(s.registrations, req.TempID)
		s.mu.Unlock()

		s.logger.Info().Int64("userID", user.Profile.ID).Str("username", user.Profile.Username).Msg("account registered")
		writeJSON(w, http.StatusCreated, apiclient.RegisterCompleteResponse{
			Success: true,
			User:    utils.Ptr(user.Profile),
			Tokens:  utils.Ptr(tokens),
			Message: "Account created.",
		})
	}
}

func (s *Server) usernameAvailable(username string) (bool, string) {
	switch {
	case !usernamePattern.MatchString(username):
		return false, "Usernames are 3-30 letters, digits, dots or underscores."
	case s.users.UsernameTaken(username):
		return false, "This username is already taken."
	default:
		return true, "Username is available."
	}
}

// registration finds the signup started for tempID and checks it belongs to email.
func (s *Server) registration(w http.ResponseWriter, tempID, email string) (pendingRegistration, bool) {
	s.mu.Lock()
	reg, ok := s.registrations[tempID]
	var out pendingRegistration
	if ok {
		out = *reg
	}
	s.mu.Unlock()

	if !ok || !strings.EqualFold(out.email, strings.TrimSpace(email)) {
		writeJSONError(w, "invalid_request", "No registration is in progress for this email.", http.StatusBadRequest)
		return pendingRegistration{}, false
	}
	return out, true
}

func (s *Server) sendRegistrationCode(w http.ResponseWriter, email string) bool {
	code, err := s.codes.issue(PurposeRegister, email, s.nowTime())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue registration code")
		writeJSONError(w, "server_error", "Could not send a verification code.", http.StatusInternalServerError)
		return false
	}
	s.sendCode(email, string(PurposeRegister), code)
	return true
}
