package mockapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/mockapi"
	"github.com/jrsteele09/go-auth-client/loginflow"
	"github.com/jrsteele09/go-auth-client/registration"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Str0ngPassw0rd"

type testConfig struct{}

func (testConfig) GetAppName() string                      { return "Auth Flow Test" }
func (testConfig) GetEnv() string                          { return "TEST" }
func (testConfig) GetLogLevel() string                     { return "disabled" }
func (testConfig) GetMockListenAddr() string               { return ":0" }
func (testConfig) GetMockJWTSecret() string                { return "test-signing-secret" }
func (testConfig) GetMockAccessTokenExpiry() time.Duration { return time.Minute }

var _ mockapi.Config = testConfig{}

type testHTTPConfig struct {
	baseURL string
}

func (c testHTTPConfig) GetBaseURL() string                { return c.baseURL }
func (c testHTTPConfig) GetRequestTimeout() time.Duration  { return 5 * time.Second }
func (c testHTTPConfig) GetResourceTimeout() time.Duration { return 10 * time.Second }
func (c testHTTPConfig) GetUserAgent() string              { return "mockapi-test" }

type clock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

// inbox captures every emailed code.
type inbox struct {
	lock  sync.Mutex
	codes map[string][]string
}

func (i *inbox) send(email, _, code string) {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.codes[email] = append(i.codes[email], code)
}

func (i *inbox) last(t *testing.T, email string) string {
	t.Helper()
	i.lock.Lock()
	defer i.lock.Unlock()
	codes := i.codes[email]
	require.NotEmpty(t, codes, "no code sent to %s", email)
	return codes[len(codes)-1]
}

func (i *inbox) count(email string) int {
	i.lock.Lock()
	defer i.lock.Unlock()
	return len(i.codes[email])
}

type testFixture struct {
	clock  *clock
	inbox  *inbox
	server *mockapi.Server
	url    string
}

func setupTestFixture(t *testing.T, options ...mockapi.ServerOption) *testFixture {
	t.Helper()
	f := &testFixture{
		clock: &clock{now: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)},
		inbox: &inbox{codes: make(map[string][]string)},
	}
	options = append([]mockapi.ServerOption{
		mockapi.WithNowTime(f.clock.Now),
		mockapi.WithLogger(zerolog.Nop()),
		mockapi.WithCodeSender(f.inbox.send),
	}, options...)

	srv, err := mockapi.New(testConfig{}, options...)
	require.NoError(t, err)
	f.server = srv

	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)
	f.url = httpSrv.URL
	return f
}

func (f *testFixture) addUser(t *testing.T, username string, methods ...session.TwoFactorMethod) mockapi.UserRecord {
	t.Helper()
	rec, err := f.server.AddUser(mockapi.UserSeed{
		Username:         username,
		Email:            username + "@example.com",
		Password:         strongPassword,
		FirstName:        "Test",
		LastName:         "User",
		DateOfBirth:      "1990-06-01",
		TwoFactorMethods: methods,
	})
	require.NoError(t, err)
	return rec
}

func (f *testFixture) client(t *testing.T, store credentials.Store) *apiclient.Client {
	t.Helper()
	c, err := apiclient.NewClient(testHTTPConfig{baseURL: f.url},
		apiclient.WithTokenSource(credentials.NewTokenSource(context.Background(), store)),
		apiclient.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	return c
}

func (f *testFixture) login(t *testing.T, store credentials.Store, deviceID string) *loginflow.Machine {
	t.Helper()
	m, err := loginflow.New(f.client(t, store), store,
		loginflow.WithNowTime(f.clock.Now),
		loginflow.WithDeviceID(deviceID),
		loginflow.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	return m
}

func (f *testFixture) register(t *testing.T, store credentials.Store) *registration.Machine {
	t.Helper()
	m, err := registration.New(f.client(t, store), store,
		registration.WithNowTime(f.clock.Now),
		registration.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	return m
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestNew(t *testing.T) {
	_, err := mockapi.New(nil)
	require.Error(t, err)
}

func TestLogin_WithoutTwoFactor(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "bob")
	ctx := context.Background()
	store := credentials.NewMemoryStore()

	state := f.login(t, store, "device-1").SubmitCredentials(ctx, "BOB@example.com", strongPassword, false)
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepComplete, state.Step)
	require.Equal(t, "bob", state.Session.User.Username)

	access, err := store.LoadAccess(ctx)
	require.NoError(t, err)
	_, ok := credentials.ExpiresAt(access)
	require.True(t, ok)

	t.Run("restore from stored tokens", func(t *testing.T) {
		restored := f.login(t, store, "device-1").Restore(ctx)
		require.Equal(t, loginflow.StepComplete, restored.Step)
		require.Equal(t, "bob", restored.Session.User.Username)
	})
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "bob")
	ctx := context.Background()

	m := f.login(t, credentials.NewMemoryStore(), "device-1")
	state := m.SubmitCredentials(ctx, "bob", "wrong-password", false)
	require.Equal(t, loginflow.StepCredentials, state.Step)
	require.Equal(t, autherror.CategoryInvalidCredentials, state.LastError.Category)

	state = m.SubmitCredentials(ctx, "nobody", strongPassword, false)
	require.Equal(t, autherror.CategoryInvalidCredentials, state.LastError.Category)
}

func TestLogin_Lockout(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "bob")
	ctx := context.Background()
	m := f.login(t, credentials.NewMemoryStore(), "device-1")

	for i := 1; i < 5; i++ {
		state := m.SubmitCredentials(ctx, "bob", "wrong-password", false)
		require.Equal(t, autherror.CategoryInvalidCredentials, state.LastError.Category, "attempt %d", i)
	}
	state := m.SubmitCredentials(ctx, "bob", "wrong-password", false)
	require.Equal(t, autherror.CategoryAccountLocked, state.LastError.Category)

	state = m.SubmitCredentials(ctx, "bob", strongPassword, false)
	require.Equal(t, loginflow.StepCredentials, state.Step)
	require.Equal(t, autherror.CategoryAccountLocked, state.LastError.Category)

	f.clock.Advance(16 * time.Minute)
	state = m.SubmitCredentials(ctx, "bob", strongPassword, false)
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepComplete, state.Step)
}

func TestLogin_EmailCode(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "carol", session.MethodEmail)
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	m := f.login(t, store, "device-1")

	state := m.SubmitCredentials(ctx, "carol", strongPassword, false)
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepEmail2FA, state.Step)
	require.Equal(t, 1, f.inbox.count("carol@example.com"))

	code := f.inbox.last(t, "carol@example.com")
	state = m.SubmitTwoFactorCode(ctx, wrongCode(code))
	require.Equal(t, loginflow.StepEmail2FA, state.Step)
	require.Equal(t, autherror.CategoryInvalidCode, state.LastError.Category)

	t.Run("resend issues a new code", func(t *testing.T) {
		state := m.ResendCode(ctx)
		require.Nil(t, state.LastError)
		require.NotEmpty(t, state.Message)
		require.Equal(t, 2, f.inbox.count("carol@example.com"))
	})

	state = m.SubmitTwoFactorCode(ctx, f.inbox.last(t, "carol@example.com"))
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepComplete, state.Step)
	require.Equal(t, "carol", state.Session.User.Username)

	_, err := store.LoadRefresh(ctx)
	require.NoError(t, err)
}

func TestLogin_ExpiredEmailCode(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "carol", session.MethodEmail)
	ctx := context.Background()
	m := f.login(t, credentials.NewMemoryStore(), "device-1")

	m.SubmitCredentials(ctx, "carol", strongPassword, false)
	f.clock.Advance(11 * time.Minute)

	state := m.SubmitTwoFactorCode(ctx, f.inbox.last(t, "carol@example.com"))
	require.Equal(t, loginflow.StepEmail2FA, state.Step)
	require.Equal(t, autherror.CategoryCodeExpired, state.LastError.Category)
}

func TestLogin_ChooseTOTP(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.addUser(t, "dave", session.MethodEmail, session.MethodTOTP)
	require.NotEmpty(t, rec.TOTPSecret)
	ctx := context.Background()
	m := f.login(t, credentials.NewMemoryStore(), "device-1")

	state := m.SubmitCredentials(ctx, "dave", strongPassword, false)
	require.Equal(t, loginflow.StepChoose2FA, state.Step)
	require.Equal(t, []session.TwoFactorMethod{session.MethodEmail, session.MethodTOTP}, state.AvailableMethods)
	require.Zero(t, f.inbox.count("dave@example.com"))

	state = m.ChooseMethod(ctx, session.MethodTOTP)
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepTOTP2FA, state.Step)

	state = m.SubmitTwoFactorCode(ctx, "123456")
	if state.LastError != nil {
		require.Equal(t, autherror.CategoryInvalidCode, state.LastError.Category)
	}

	code, err := totp.GenerateCode(rec.TOTPSecret, f.clock.Now())
	require.NoError(t, err)
	state = m.SubmitTwoFactorCode(ctx, code)
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepComplete, state.Step)
}

func TestLogin_ChooseEmailAfterGoingBack(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "dave", session.MethodEmail, session.MethodTOTP)
	ctx := context.Background()
	m := f.login(t, credentials.NewMemoryStore(), "device-1")

	m.SubmitCredentials(ctx, "dave", strongPassword, false)
	m.ChooseMethod(ctx, session.MethodTOTP)
	state := m.GoBack()
	require.Equal(t, loginflow.StepChoose2FA, state.Step)

	state = m.ChooseMethod(ctx, session.MethodEmail)
	require.Equal(t, loginflow.StepEmail2FA, state.Step)

	state = m.SubmitTwoFactorCode(ctx, f.inbox.last(t, "dave@example.com"))
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepComplete, state.Step)
}

func TestLogin_IncompleteVerification(t *testing.T) {
	f := setupTestFixture(t, mockapi.WithIncompleteVerification())
	f.addUser(t, "carol", session.MethodEmail)
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	m := f.login(t, store, "device-1")

	m.SubmitCredentials(ctx, "carol", strongPassword, false)
	state := m.SubmitTwoFactorCode(ctx, f.inbox.last(t, "carol@example.com"))
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepComplete, state.Step)
	require.Equal(t, "carol", state.Session.User.Username)

	_, err := store.LoadAccess(ctx)
	require.NoError(t, err)
}

func TestLogin_RememberDevice(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.addUser(t, "erin", session.MethodTOTP)
	ctx := context.Background()

	m := f.login(t, credentials.NewMemoryStore(), "device-1")
	state := m.SubmitCredentials(ctx, "erin", strongPassword, true)
	require.Equal(t, loginflow.StepTOTP2FA, state.Step)

	code, err := totp.GenerateCode(rec.TOTPSecret, f.clock.Now())
	require.NoError(t, err)
	state = m.SubmitTwoFactorCode(ctx, code)
	require.Equal(t, loginflow.StepComplete, state.Step)

	t.Run("trusted device skips the second factor", func(t *testing.T) {
		state := f.login(t, credentials.NewMemoryStore(), "device-1").SubmitCredentials(ctx, "erin", strongPassword, true)
		require.Equal(t, loginflow.StepComplete, state.Step)
	})

	t.Run("other devices still need it", func(t *testing.T) {
		state := f.login(t, credentials.NewMemoryStore(), "device-2").SubmitCredentials(ctx, "erin", strongPassword, true)
		require.Equal(t, loginflow.StepTOTP2FA, state.Step)
	})

	t.Run("not remembering asks again", func(t *testing.T) {
		state := f.login(t, credentials.NewMemoryStore(), "device-1").SubmitCredentials(ctx, "erin", strongPassword, false)
		require.Equal(t, loginflow.StepTOTP2FA, state.Step)
	})
}

func TestRestore_RefreshesExpiredAccess(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "bob")
	ctx := context.Background()
	store := credentials.NewMemoryStore()

	f.login(t, store, "device-1").SubmitCredentials(ctx, "bob", strongPassword, false)
	oldAccess, err := store.LoadAccess(ctx)
	require.NoError(t, err)
	oldRefresh, err := store.LoadRefresh(ctx)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	state := f.login(t, store, "device-1").Restore(ctx)
	require.Nil(t, state.LastError)
	require.Equal(t, loginflow.StepComplete, state.Step)

	newAccess, err := store.LoadAccess(ctx)
	require.NoError(t, err)
	newRefresh, err := store.LoadRefresh(ctx)
	require.NoError(t, err)
	require.NotEqual(t, oldAccess, newAccess)
	require.NotEqual(t, oldRefresh, newRefresh)

	t.Run("old refresh token is rotated out", func(t *testing.T) {
		stale := credentials.NewMemoryStore()
		require.NoError(t, stale.Save(ctx, oldAccess, oldRefresh))
		ok, err := f.login(t, stale, "device-1").RefreshSession(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestRestore_RevokedSessionClearsStore(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "bob")
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	m := f.login(t, store, "device-1")

	m.SubmitCredentials(ctx, "bob", strongPassword, false)
	access, _ := store.LoadAccess(ctx)
	refresh, _ := store.LoadRefresh(ctx)

	state := m.Logout(ctx)
	require.Equal(t, loginflow.StepCredentials, state.Step)
	_, err := store.LoadAccess(ctx)
	require.ErrorIs(t, err, credentials.ErrNoToken)

	require.NoError(t, store.Save(ctx, access, refresh))
	f.clock.Advance(2 * time.Minute)

	state = f.login(t, store, "device-1").Restore(ctx)
	require.Equal(t, loginflow.StepCredentials, state.Step)
	require.Nil(t, state.LastError)
	_, err = store.LoadAccess(ctx)
	require.ErrorIs(t, err, credentials.ErrNoToken)
}

func TestProfile_RequiresBearer(t *testing.T) {
	f := setupTestFixture(t)

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, f.url+apiclient.RouteProfile, nil)
			require.NoError(t, err)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.NotEmpty(t, body["detail"])
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	f := setupTestFixture(t)
	c := f.client(t, credentials.NewMemoryStore())

	_, err := c.Do(context.Background(), apiclient.Request{Method: http.MethodGet, Path: "/api/nope/"}, nil)
	require.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestRegistration_EndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, "alice")
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	m := f.register(t, store)

	state := m.SubmitEmail(ctx, "jo@example.com")
	require.Nil(t, state.LastError)
	require.Equal(t, registration.StepVerification, state.Step)
	require.NotEmpty(t, state.Fields.TempID)

	code := f.inbox.last(t, "jo@example.com")
	state = m.SubmitVerificationCode(ctx, wrongCode(code))
	require.Equal(t, autherror.CategoryInvalidCode, state.LastError.Category)

	state = m.ResendVerificationCode(ctx)
	require.Nil(t, state.LastError)
	require.Equal(t, 2, f.inbox.count("jo@example.com"))

	state = m.SubmitVerificationCode(ctx, f.inbox.last(t, "jo@example.com"))
	require.Nil(t, state.LastError)
	require.True(t, state.EmailVerified)
	require.Equal(t, registration.StepPersonalInfo, state.Step)

	state = m.SubmitPersonalInfo("Jo", "Doe", time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, registration.StepUsername, state.Step)

	state = m.CheckUsernameAvailability(ctx, "alice")
	require.False(t, state.UsernameCheck.Available)
	require.NotEmpty(t, state.UsernameCheck.Message)

	state = m.CheckUsernameAvailability(ctx, "x")
	require.False(t, state.UsernameCheck.Available)

	state = m.CheckUsernameAvailability(ctx, "jodoe")
	require.True(t, state.UsernameCheck.Available)
	require.Equal(t, "jodoe", state.UsernameCheck.LastCheckedValue)

	state = m.ContinueFromUsername()
	require.Equal(t, registration.StepPassword, state.Step)

	state = m.SubmitPassword(strongPassword, strongPassword)
	require.Equal(t, registration.StepSummary, state.Step)

	state = m.ConfirmSummary(ctx)
	require.Nil(t, state.LastError)
	require.Equal(t, registration.StepComplete, state.Step)
	require.Equal(t, "jodoe", state.Session.User.Username)
	require.Equal(t, "1990-06-01", state.Session.User.DateOfBirth)

	_, err := store.LoadAccess(ctx)
	require.NoError(t, err)

	t.Run("new account can log in", func(t *testing.T) {
		state := f.login(t, credentials.NewMemoryStore(), "device-1").SubmitCredentials(ctx, "jodoe", strongPassword, false)
		require.Equal(t, loginflow.StepComplete, state.Step)
	})

	t.Run("email is now taken", func(t *testing.T) {
		state := f.register(t, credentials.NewMemoryStore()).SubmitEmail(ctx, "jo@example.com")
		require.Equal(t, registration.StepEmail, state.Step)
		require.Equal(t, "email_taken", state.LastError.Code)
	})
}

func TestRegistration_WeakPasswordRejectedByServer(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	m := f.register(t, credentials.NewMemoryStore())

	m.SubmitEmail(ctx, "jo@example.com")
	m.SubmitVerificationCode(ctx, f.inbox.last(t, "jo@example.com"))
	m.SubmitPersonalInfo("Jo", "Doe", time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC))
	m.CheckUsernameAvailability(ctx, "jodoe")
	m.ContinueFromUsername()
	state := m.SubmitPassword("alllowercase", "alllowercase")
	require.Equal(t, registration.StepSummary, state.Step)

	state = m.ConfirmSummary(ctx)
	require.Equal(t, registration.StepSummary, state.Step)
	require.Equal(t, autherror.CategoryValidation, state.LastError.Category)
	require.Equal(t, "password_too_weak", state.LastError.Code)
}

func TestRegistration_CompleteRequiresVerifiedEmail(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	c := f.client(t, credentials.NewMemoryStore())

	var step1 apiclient.RegisterStep1Response
	_, err := c.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteRegisterStep1,
		Body:   apiclient.RegisterStep1Request{Email: "jo@example.com"},
	}, &step1)
	require.NoError(t, err)

	req := registration.CompletionRequest(registration.Fields{
		Email:       "jo@example.com",
		TempID:      step1.TempID,
		FirstName:   "Jo",
		LastName:    "Doe",
		DateOfBirth: time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
		Username:    "jodoe",
		Password1:   strongPassword,
		Password2:   strongPassword,
	})
	_, err = c.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: apiclient.RouteRegisterComplete, Body: req}, nil)
	require.Equal(t, autherror.CategoryNotVerified, autherror.FromError(err).Category)
}
