package apiclient

import "github.com/jrsteele09/go-auth-client/session"

// LoginRequest is sent to RouteLogin. ChosenMethod is only set when the
// same endpoint is used to pick a second factor.
type LoginRequest struct {
	// Identifier is a username or an email address.
	Identifier string `json:"identifier"`

	Password string `json:"password"`

	// RememberDevice asks the server to skip 2FA for DeviceID next time.
	RememberDevice bool   `json:"remember_device"`
	DeviceID       string `json:"device_id,omitempty"`

	// ChosenMethod is "email" or "totp".
	ChosenMethod session.TwoFactorMethod `json:"chosen_method,omitempty"`
}

// LoginResponse is returned by the login, 2FA verification and complete-login endpoints.
type LoginResponse struct {
	Success bool `json:"success"`

	// Requires2FA signals that a second factor must be verified before tokens are issued.
	Requires2FA bool `json:"requires_2fa"`

	// AvailableMethods is ordered by server preference. Only present when Requires2FA is true.
	AvailableMethods []session.TwoFactorMethod `json:"available_methods,omitempty"`

	// NextStep is "email_2fa" or "totp_2fa" after a method choice.
	NextStep string `json:"next_step,omitempty"`

	User    *session.User   `json:"user,omitempty"`
	Tokens  *session.Tokens `json:"tokens,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Authenticated reports whether the response carries everything needed to open a session.
func (r *LoginResponse) Authenticated() bool {
	return r != nil && r.User != nil && r.Tokens.Complete()
}

// TwoFactorVerifyRequest is sent to RouteVerifyEmail2FA or RouteVerifyTOTP2FA.
type TwoFactorVerifyRequest struct {
	Identifier     string `json:"identifier"`
	Code           string `json:"code"`
	RememberDevice bool   `json:"remember_device"`
	DeviceID       string `json:"device_id,omitempty"`
}

// CompleteLoginRequest is the follow-up sent when a 2FA verification was
// accepted but the response carried no user or tokens.
type CompleteLoginRequest struct {
	Identifier string                  `json:"identifier"`
	Method     session.TwoFactorMethod `json:"method"`
}

// ResendCodeRequest is sent to RouteResend2FACode.
type ResendCodeRequest struct {
	Identifier string                  `json:"identifier"`
	Method     session.TwoFactorMethod `json:"method"`
}

// MessageResponse is the generic {"success","message"} acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RefreshRequest is sent to RouteTokenRefresh and RouteLogout.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries a new access token. Refresh is only present when
// the server rotates refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// ProfileResponse is returned by RouteProfile.
type ProfileResponse struct {
	User session.User `json:"user"`
}

// RegisterStep1Request starts a registration by sending a code to Email.
type RegisterStep1Request struct {
	Email string `json:"email"`
}

type RegisterStep1Response struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	TempID  string `json:"temp_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type RegisterStep2Request struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
	TempID           string `json:"temp_id,omitempty"`
}

type RegisterStep2Response struct {
	Success       bool   `json:"success"`
	EmailVerified bool   `json:"email_verified"`
	Message       string `json:"message,omitempty"`
}

type CheckUsernameRequest struct {
	Username string `json:"username"`
}

// CheckUsernameResponse echoes the probed username so stale answers can be discarded.
type CheckUsernameResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// RegisterCompleteRequest carries every field collected by the registration flow.
type RegisterCompleteRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
	TempID           string `json:"temp_id,omitempty"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	DateOfBirth      string `json:"date_of_birth"` // YYYY-MM-DD
	Username         string `json:"username"`
	Password1        string `json:"password1"`
	Password2        string `json:"password2"`
}

type RegisterCompleteResponse struct {
	Success bool            `json:"success"`
	User    *session.User   `json:"user,omitempty"`
	Tokens  *session.Tokens `json:"tokens,omitempty"`
	Message string          `json:"message,omitempty"`
}

type ResendRegistrationCodeRequest struct {
	Email  string `json:"email"`
	TempID string `json:"temp_id,omitempty"`
}

// errorBody covers the error shapes the backend produces:
// {"error":{"code","message"}}, {"error":"..."}, {"detail":"..."} and {"message":"..."}.
type errorBody struct {
	Error   rawError `json:"error"`
	Detail  string   `json:"detail"`
	Message string   `json:"message"`
}
