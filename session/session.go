package session

import "time"

// TwoFactorMethod identifies a second-factor channel offered by the server.
type TwoFactorMethod string

const (
	MethodEmail TwoFactorMethod = "email"
	MethodTOTP  TwoFactorMethod = "totp"
)

// Valid reports whether m is one of the methods the client knows how to verify.
func (m TwoFactorMethod) Valid() bool {
	return m == MethodEmail || m == MethodTOTP
}

// User is the profile snapshot returned by the server. It is never patched
// field by field; every successful auth step replaces it wholesale.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name,omitempty"`
	LastName         string    `json:"last_name,omitempty"`
	DateOfBirth      string    `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	ProfilePicture   string    `json:"profile_picture,omitempty"`
	Bio              string    `json:"bio,omitempty"`
	IsEmailVerified  bool      `json:"is_email_verified"`
	IsPrivate        bool      `json:"is_private"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TwoFactorMethods []string  `json:"two_factor_methods,omitempty"`
	DateJoined       time.Time `json:"date_joined"`
	LastLogin        time.Time `json:"last_login"`
	FollowersCount   int       `json:"followers_count,omitempty"`
	FollowingCount   int       `json:"following_count,omitempty"`
	PostsCount       int       `json:"posts_count,omitempty"`
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}

// Tokens is the bearer pair issued by the server.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Complete reports whether both halves of the pair are present.
func (t *Tokens) Complete() bool {
	return t != nil && t.Access != "" && t.Refresh != ""
}

// Session is the authenticated identity held by a state machine once a flow
// reaches its terminal step. Tokens live in the credential store; the copy
// here is only kept while the transition that produced it is in flight.
type Session struct {
	User            User
	AuthenticatedAt time.Time
}
