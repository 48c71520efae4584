package mockapi

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
			writeJSONError(w, "validation_error", "Identifier and password are required.", http.StatusBadRequest)
			return
		}

		user, ok := s.authenticate(w, req.Identifier, req.Password)
		if !ok {
			return
		}

		if req.ChosenMethod != "" {
			s.chooseMethod(w, req, user)
			return
		}

		methods := user.methods()
		trusted := req.RememberDevice && req.DeviceID != "" && user.TrustedDevices[req.DeviceID]
		if len(methods) == 0 || trusted {
			s.writeSession(w, user.Profile.ID, "Login successful.")
			return
		}

		pending := &pendingLogin{userID: user.Profile.ID}
		resp := apiclient.LoginResponse{
			Success:          true,
			Requires2FA:      true,
			AvailableMethods: methods,
			Message:          "Two-factor authentication required.",
		}
		if len(methods) == 1 {
			pending.method = methods[0]
			resp.NextStep = nextStepFor(methods[0])
			if methods[0] == session.MethodEmail && !s.sendLoginCode(w, user) {
				return
			}
		}
		s.setPendingLogin(req.Identifier, pending)
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) chooseMethod(w http.ResponseWriter, req apiclient.LoginRequest, user UserRecord) {
	if !user.hasMethod(req.ChosenMethod) {
		writeJSONError(w, "validation_error", "This verification method is not enabled for the account.", http.StatusBadRequest)
		return
	}
	if req.ChosenMethod == session.MethodEmail && !s.sendLoginCode(w, user) {
		return
	}
	s.setPendingLogin(req.Identifier, &pendingLogin{userID: user.Profile.ID, method: req.ChosenMethod})

	message := "Enter the code from your authenticator app."
	if req.ChosenMethod == session.MethodEmail {
		message = "Verification code sent to your email."
	}
	writeJSON(w, http.StatusOK, apiclient.LoginResponse{
		Success:  true,
		NextStep: nextStepFor(req.ChosenMethod),
		Message:  message,
	})
}

func (s *Server) VerifyEmailCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.TwoFactorVerifyRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		pending, user, ok := s.pendingFor(w, req.Identifier, session.MethodEmail)
		if !ok {
			return
		}

		switch s.codes.check(PurposeLogin, user.Profile.Email, req.Code, s.nowTime()) {
		case codeExpired:
			writeJSONError(w, "code_expired", "The verification code has expired.", http.StatusBadRequest)
			return
		case codeWrong, codeMissing:
			writeJSONError(w, "invalid_code", "Invalid verification code.", http.StatusBadRequest)
			return
		}
		s.finishTwoFactor(w, req, pending)
	}
}

func (s *Server) VerifyTOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.TwoFactorVerifyRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		pending, user, ok := s.pendingFor(w, req.Identifier, session.MethodTOTP)
		if !ok {
			return
		}

		valid, err := totp.ValidateCustom(req.Code, user.TOTPSecret, s.nowTime().UTC(), totpOpts)
		if err != nil || !valid {
			writeJSONError(w, "invalid_code", "Invalid authenticator code.", http.StatusBadRequest)
			return
		}
		s.finishTwoFactor(w, req, pending)
	}
}

func (s *Server) CompleteLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.CompleteLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		pending := s.takeVerifiedLogin(req.Identifier)
		if pending == nil {
			writeJSONError(w, "invalid_request", "Two-factor verification has not been completed.", http.StatusBadRequest)
			return
		}
		s.writeSession(w, pending.userID, "Login successful.")
	}
}

func (s *Server) ResendLoginCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.ResendCodeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		_, user, ok := s.pendingFor(w, req.Identifier, req.Method)
		if !ok {
			return
		}
		if req.Method == session.MethodTOTP {
			writeJSON(w, http.StatusOK, apiclient.MessageResponse{Success: true, Message: "Open your authenticator app for a new code."})
			return
		}
		if !s.sendLoginCode(w, user) {
			return
		}
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Success: true, Message: "A new code has been sent."})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.RefreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s.tokens.revoke(req.Refresh)
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Success: true})
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.RefreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		tokens, ok, err := s.tokens.rotate(req.Refresh)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to rotate refresh token")
			writeJSONError(w, "server_error", "Could not refresh the session.", http.StatusInternalServerError)
			return
		}
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		writeJSON(w, http.StatusOK, apiclient.RefreshResponse{Access: tokens.Access, Refresh: tokens.Refresh})
	}
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		userID, err := s.tokens.verifyAccess(token)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		user, ok := s.users.Get(userID)
		if !ok {
			writeDetail(w, http.StatusNotFound, "User not found.")
			return
		}
		writeJSON(w, http.StatusOK, apiclient.ProfileResponse{User: user.Profile})
	}
}

// authenticate checks the password and applies the lockout policy. It writes
// the error response itself.
func (s *Server) authenticate(w http.ResponseWriter, identifier, password string) (UserRecord, bool) {
	user, ok := s.users.Find(identifier)
	if !ok {
		writeJSONError(w, "invalid_credentials", "Invalid credentials.", http.StatusBadRequest)
		return UserRecord{}, false
	}

	now := s.nowTime()
	if now.Before(user.LockedUntil) {
		writeJSONError(w, "account_locked", "Account is locked. Try again later.", http.StatusBadRequest)
		return UserRecord{}, false
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		updated, _ := s.users.Update(user.Profile.ID, func(u *UserRecord) {
			u.FailedLogins++
			if u.FailedLogins >= maxFailedLogins {
				u.FailedLogins = 0
				u.LockedUntil = now.Add(lockoutDuration)
			}
		})
		if now.Before(updated.LockedUntil) {
			s.logger.Info().Str("username", user.Profile.Username).Msg("account locked after repeated failures")
			writeJSONError(w, "account_locked", "Too many failed attempts. Account is locked.", http.StatusBadRequest)
			return UserRecord{}, false
		}
		writeJSONError(w, "invalid_credentials", "Invalid credentials.", http.StatusBadRequest)
		return UserRecord{}, false
	}

	user, _ = s.users.Update(user.Profile.ID, func(u *UserRecord) {
		u.FailedLogins = 0
	})
	return user, true
}

func (s *Server) writeSession(w http.ResponseWriter, userID int64, message string) {
	tokens, err := s.tokens.issue(userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue tokens")
		writeJSONError(w, "server_error", "Could not create a session.", http.StatusInternalServerError)
		return
	}
	user, ok := s.users.Update(userID, func(u *UserRecord) {
		u.Profile.LastLogin = s.nowTime().UTC()
	})
	if !ok {
		writeJSONError(w, "user_not_found", "User not found.", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, apiclient.LoginResponse{
		Success: true,
		User:    utils.Ptr(user.Profile),
		Tokens:  utils.Ptr(tokens),
		Message: message,
	})
}

func (s *Server) finishTwoFactor(w http.ResponseWriter, req apiclient.TwoFactorVerifyRequest, pending pendingLogin) {
	if req.RememberDevice && req.DeviceID != "" {
		s.users.Update(pending.userID, func(u *UserRecord) {
			u.TrustedDevices[req.DeviceID] = true
		})
	}
	if s.incomplete {
		s.markLoginVerified(req.Identifier)
		writeJSON(w, http.StatusOK, apiclient.LoginResponse{Success: true, Message: "Code verified."})
		return
	}
	s.clearPendingLogin(req.Identifier)
	s.writeSession(w, pending.userID, "Login successful.")
}

func (s *Server) sendLoginCode(w http.ResponseWriter, user UserRecord) bool {
	code, err := s.codes.issue(PurposeLogin, user.Profile.Email, s.nowTime())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue login code")
		writeJSONError(w, "server_error", "Could not send a verification code.", http.StatusInternalServerError)
		return false
	}
	s.sendCode(user.Profile.Email, string(PurposeLogin), code)
	return true
}

// pendingFor returns the password-verified login for identifier when method
// is enabled for it.
func (s *Server) pendingFor(w http.ResponseWriter, identifier string, method session.TwoFactorMethod) (pendingLogin, UserRecord, bool) {
	s.mu.Lock()
	pending, ok := s.logins[loginKey(identifier)]
	var p pendingLogin
	if ok {
		p = *pending
	}
	s.mu.Unlock()

	if !ok {
		writeJSONError(w, "invalid_request", "No login is waiting for verification.", http.StatusBadRequest)
		return pendingLogin{}, UserRecord{}, false
	}
	user, found := s.users.Get(p.userID)
	if !found || !user.hasMethod(method) {
		writeJSONError(w, "validation_error", "This verification method is not enabled for the account.", http.StatusBadRequest)
		return pendingLogin{}, UserRecord{}, false
	}
	return p, user, true
}

func (s *Server) setPendingLogin(identifier string, p *pendingLogin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins[loginKey(identifier)] = p
}

func (s *Server) clearPendingLogin(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logins, loginKey(identifier))
}

func (s *Server) markLoginVerified(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.logins[loginKey(identifier)]; ok {
		p.verified = true
	}
}

func (s *Server) takeVerifiedLogin(identifier string) *pendingLogin {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.logins[loginKey(identifier)]
	if !ok || !p.verified {
		return nil
	}
	delete(s.logins, loginKey(identifier))
	return p
}

func loginKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func nextStepFor(m session.TwoFactorMethod) string {
	if m == session.MethodTOTP {
		return apiclient.NextStepTOTP2FA
	}
	return apiclient.NextStepEmail2FA
}

