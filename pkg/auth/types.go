package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// RoleAdmin is the role that bypasses all permission checks
const RoleAdmin = "Admin"

// UserID identifies a user. The API emits it as either a JSON string or number.
type UserID string

// UnmarshalJSON accepts both "42" and 42
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("invalid numeric user id %q: %w", n.String(), err)
	}
	*id = UserID(n.String())
	return nil
}

// String returns the id as a string
func (id UserID) String() string {
	return string(id)
}

// User is the identity returned by the authentication endpoint
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	// Roles holds every role when the identity came from a multi-valued claim
	Roles []string `json:"roles,omitempty"`
}

// IsAdmin reports whether the user holds the given bypass role
func (u *User) IsAdmin(adminRole string) bool {
	if u == nil || adminRole == "" {
		return false
	}
	return u.Role == adminRole || slices.Contains(u.Roles, adminRole)
}

// Session is an immutable snapshot of the authentication state.
// User is non-nil iff Token is non-empty.
type Session struct {
	Token string
	User  *User
}

// Anonymous returns the logged-out session
func Anonymous() Session {
	return Session{}
}

// IsAuthenticated is derived solely from token presence
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// UserID returns the id of the current user, or "" when logged out
func (s Session) UserID() UserID {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Role returns the role of the current user, or "" when logged out
func (s Session) Role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}
