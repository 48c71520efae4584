package apiclient

// Route path constants
// Every endpoint the client speaks is defined here; the backend expects the trailing slash.
const (
	// Login & session
	RouteLogin         = "/api/auth/login/"
	RouteLoginComplete = "/api/auth/login/complete/"
	RouteLogout        = "/api/auth/logout/"
	RouteTokenRefresh  = "/api/auth/token/refresh/"
	RouteProfile       = "/api/auth/profile/"

	// Two-factor
	RouteVerifyEmail2FA = "/api/auth/2fa/email/verify/"
	RouteVerifyTOTP2FA  = "/api/auth/2fa/totp/verify/"
	RouteResend2FACode  = "/api/auth/2fa/resend/"

	// Registration
	RouteRegisterStep1      = "/api/auth/register/step1/"
	RouteRegisterStep2      = "/api/auth/register/step2/"
	RouteRegisterComplete   = "/api/auth/register/complete/"
	RouteRegisterResendCode = "/api/auth/register/resend-code/"
	RouteCheckUsername      = "/api/auth/check-username/"
)

// Next-step identifiers declared by the server after a method choice.
const (
	NextStepEmail2FA = "email_2fa"
	NextStepTOTP2FA  = "totp_2fa"
)
