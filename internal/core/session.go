package core

import (
	"strings"
	"time"
)

// Session is an explicit value representing a logged-in account. Callers own
// the session; there is no process-global current user.
type Session struct {
	user    User
	loginAt time.Time
	active  bool
}

// NewSession starts a session for the given account at the given time.
func NewSession(u User, at time.Time) Session {
	return Session{user: u, loginAt: at, active: true}
}

// User returns the logged-in account, or false after logout.
func (s Session) User() (User, bool) {
	if !s.active {
		return User{}, false
	}
	return s.user, true
}

// LoginTime reports when the session started.
func (s Session) LoginTime() time.Time { return s.loginAt }

// IsLoggedIn reports whether the session is still active.
func (s Session) IsLoggedIn() bool { return s.active }

// IsAdmin reports whether the session belongs to an admin account.
func (s Session) IsAdmin() bool {
	return s.active && strings.EqualFold(string(s.user.UserType), string(UserTypeAdmin))
}

// Logout deactivates the session and clears the account.
func (s *Session) Logout() {
	s.user = User{}
	s.active = false
}
