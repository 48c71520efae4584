package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the subset of configuration the mock backend reads.
type Config interface {
	config.EnvConfig
	config.MockConfig
}

// CodeSender receives every emailed code. The default logs it.
type CodeSender func(email, purpose, code string)

// pendingLogin is a password-verified login waiting for its second factor.
type pendingLogin struct {
	userID   int64
	method   session.TwoFactorMethod
	verified bool
}

// pendingRegistration is a started signup keyed by temp id.
type pendingRegistration struct {
	email    string
	verified bool
}

// Server is an in-memory stand-in for the auth backend. It speaks the same
// routes and payloads as the real API.
type Server struct {
	env     string
	appName string
	router  *mux.Router
	routes  []string
	logger  zerolog.Logger
	nowTime func() time.Time

	users      *UserStore
	codes      *codeBook
	tokens     *tokenIssuer
	sendCode   CodeSender
	incomplete bool

	mu            sync.Mutex
	logins        map[string]*pendingLogin // lower-cased identifier -> pending
	registrations map[string]*pendingRegistration
}

type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

func WithCodeSender(fn CodeSender) ServerOption {
	return func(s *Server) {
		s.sendCode = fn
	}
}

// WithIncompleteVerification makes 2FA verification answer without the user
// and tokens, so clients must call the complete-login endpoint.
func WithIncompleteVerification() ServerOption {
	return func(s *Server) {
		s.incomplete = true
	}
}

func New(cfg Config, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[mockapi.New] config is required")
	}
	if cfg.GetMockJWTSecret() == "" {
		return nil, errors.New("[mockapi.New] jwt secret is required")
	}

	s := &Server{
		env:           cfg.GetEnv(),
		appName:       cfg.GetAppName(),
		router:        mux.NewRouter(),
		logger:        log.Logger,
		nowTime:       time.Now,
		users:         NewUserStore(),
		codes:         newCodeBook(),
		logins:        make(map[string]*pendingLogin),
		registrations: make(map[string]*pendingRegistration),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.sendCode == nil {
		s.sendCode = func(email, purpose, code string) {
			s.logger.Info().Str("email", email).Str("purpose", purpose).Str("code", code).Msg("verification code sent")
		}
	}
	s.tokens = newTokenIssuer(cfg.GetMockJWTSecret(), cfg.GetMockAccessTokenExpiry(), s.nowTime)

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteFunc adds a handler wrapped in the standard middleware.
func (s *Server) RegisterRouteFunc(method, path string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+path)
	s.router.HandleFunc(path, ChainMiddleware(handler, s.APIMiddleware()...)).Methods(method)
}

// AddUser seeds an account. The returned record carries the TOTP secret
// when MethodTOTP is enabled.
func (s *Server) AddUser(seed UserSeed) (UserRecord, error) {
	rec, err := s.users.Create(seed, s.nowTime(), s.appName)
	if err != nil {
		return UserRecord{}, errors.Wrap(err, "[Server.AddUser] failed to create user")
	}
	return rec, nil
}

// LastCode returns the outstanding email code for address, if any.
func (s *Server) LastCode(purpose CodePurpose, email string) (string, bool) {
	return s.codes.peek(purpose, email)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		logRoute(parts[0], parts[1])
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	log.Info().Msgf("[%s] %s", methodColor(method).Sprint(paddedMethod), path)
}
