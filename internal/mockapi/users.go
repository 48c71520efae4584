package mockapi

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// UserSeed describes an account created directly, bypassing registration.
type UserSeed struct {
	Username         string
	Email            string
	Password         string
	FirstName        string
	LastName         string
	DateOfBirth      string
	TwoFactorMethods []session.TwoFactorMethod
}

// UserRecord is the server-side view of an account.
type UserRecord struct {
	Profile      session.User
	PasswordHash string

	// TOTPSecret is the base32 secret shared with the authenticator app.
	TOTPSecret string

	FailedLogins   int
	LockedUntil    time.Time
	TrustedDevices map[string]bool
}

func (u *UserRecord) methods() []session.TwoFactorMethod {
	out := make([]session.TwoFactorMethod, 0, len(u.Profile.TwoFactorMethods))
	for _, m := range u.Profile.TwoFactorMethods {
		out = append(out, session.TwoFactorMethod(m))
	}
	return out
}

func (u *UserRecord) hasMethod(m session.TwoFactorMethod) bool {
	return slices.Contains(u.methods(), m)
}

// UserStore is an in-memory account table keyed by lower-cased username and email.
type UserStore struct {
	mu         sync.RWMutex
	byID       map[int64]*UserRecord
	byUsername map[string]int64
	byEmail    map[string]int64
	nextID     int64
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[int64]*UserRecord),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
		nextID:     1,
	}
}

// Create adds an account. The returned record is a copy.
func (s *UserStore) Create(seed UserSeed, now time.Time, appName string) (UserRecord, error) {
	if seed.Username == "" || seed.Email == "" {
		return UserRecord{}, fmt.Errorf("username and email are required")
	}
	hash, err := HashPassword(seed.Password)
	if err != nil {
		return UserRecord{}, autherrors.Wrapf(err, "failed to hash password")
	}

	rec := &UserRecord{
		Profile: session.User{
			Username:         seed.Username,
			Email:            seed.Email,
			FirstName:        seed.FirstName,
			LastName:         seed.LastName,
			DateOfBirth:      seed.DateOfBirth,
			IsEmailVerified:  true,
			TwoFactorEnabled: len(seed.TwoFactorMethods) > 0,
			DateJoined:       now.UTC(),
		},
		PasswordHash:   hash,
		TrustedDevices: make(map[string]bool),
	}
	for _, m := range seed.TwoFactorMethods {
		rec.Profile.TwoFactorMethods = append(rec.Profile.TwoFactorMethods, string(m))
	}
	if rec.hasMethod(session.MethodTOTP) {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: appName, AccountName: seed.Email})
		if err != nil {
			return UserRecord{}, autherrors.Wrapf(err, "failed to generate totp secret for %s", seed.Username)
		}
		rec.TOTPSecret = key.Secret()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[strings.ToLower(seed.Username)]; ok {
		return UserRecord{}, fmt.Errorf("username %q already exists", seed.Username)
	}
	if _, ok := s.byEmail[strings.ToLower(seed.Email)]; ok {
		return UserRecord{}, fmt.Errorf("email %q already exists", seed.Email)
	}
	rec.Profile.ID = s.nextID
	s.nextID++
	s.byID[rec.Profile.ID] = rec
	s.byUsername[strings.ToLower(seed.Username)] = rec.Profile.ID
	s.byEmail[strings.ToLower(seed.Email)] = rec.Profile.ID
	return copyRecord(rec), nil
}

// Find looks an account up by username or email.
func (s *UserStore) Find(identifier string) (UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.findLocked(identifier)
	if rec == nil {
		return UserRecord{}, false
	}
	return copyRecord(rec), true
}

func (s *UserStore) Get(id int64) (UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return UserRecord{}, false
	}
	return copyRecord(rec), true
}

func (s *UserStore) UsernameTaken(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUsername[strings.ToLower(username)]
	return ok
}

func (s *UserStore) EmailTaken(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[strings.ToLower(email)]
	return ok
}

// Update applies fn to the stored record under the write lock.
func (s *UserStore) Update(id int64, fn func(*UserRecord)) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return UserRecord{}, false
	}
	fn(rec)
	return copyRecord(rec), true
}

func (s *UserStore) findLocked(identifier string) *UserRecord {
	key := strings.ToLower(strings.TrimSpace(identifier))
	if id, ok := s.byUsername[key]; ok {
		return s.byID[id]
	}
	if id, ok := s.byEmail[key]; ok {
		return s.byID[id]
	}
	return nil
}

func copyRecord(rec *UserRecord) UserRecord {
	out := *rec
	out.Profile.TwoFactorMethods = slices.Clone(rec.Profile.TwoFactorMethods)
	out.TrustedDevices = make(map[string]bool, len(rec.TrustedDevices))
	for k, v := range rec.TrustedDevices {
		out.TrustedDevices[k] = v
	}
	return out
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	switch {
	case !hasUpper:
		return fmt.Errorf("password must contain at least one uppercase letter")
	case !hasLower:
		return fmt.Errorf("password must contain at least one lowercase letter")
	case !hasNumber:
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
