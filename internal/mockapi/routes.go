package mockapi

import (
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteLogin, s.LoginHandler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteLoginComplete, s.CompleteLoginHandler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteLogout, s.LogoutHandler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteTokenRefresh, s.RefreshHandler())
	s.RegisterRouteFunc(http.MethodGet, apiclient.RouteProfile, s.ProfileHandler())

	// TWO FACTOR
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteVerifyEmail2FA, s.VerifyEmailCodeHandler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteVerifyTOTP2FA, s.VerifyTOTPHandler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteResend2FACode, s.ResendLoginCodeHandler())

	// REGISTRATION
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteRegisterStep1, s.RegisterStep1Handler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteRegisterStep2, s.RegisterStep2Handler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteRegisterResendCode, s.ResendRegistrationCodeHandler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteCheckUsername, s.CheckUsernameHandler())
	s.RegisterRouteFunc(http.MethodPost, apiclient.RouteRegisterComplete, s.RegisterCompleteHandler())

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
}
