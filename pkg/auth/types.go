package auth

import (
	"time"
)

// Role classifies a user for authorization purposes. Every user holds
// exactly one role.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether the role is one of the known values
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User is the stored user record. PasswordHash never leaves the package;
// handlers expose PrincipalView instead.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// View returns the sanitized representation of the user
func (u *User) View() *PrincipalView {
	return &PrincipalView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// PrincipalView is the externally visible identity record. It never carries
// the password hash.
type PrincipalView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is the authenticated identity attached to a request. It is
// constructed fresh per request from the user store.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
	Enabled  bool
}

// HasRole reports whether the principal's role is in the given set
func (p *Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the ADMIN role
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// LoginRequest carries login credentials. Login accepts a username or an
// email in the Username field.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	AccessToken string         `json:"accessToken"`
	TokenType   string         `json:"tokenType"`
	Account     *PrincipalView `json:"account"`
}

// RegisterRequest carries the fields for a new account
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// TokenVerification is the result of verifying an arbitrary token
type TokenVerification struct {
	Valid     bool           `json:"valid"`
	Principal *PrincipalView `json:"user,omitempty"`
	Reason    string         `json:"message"`
}

// LogoutResult confirms a logout
type LogoutResult struct {
	Username                string    `json:"username"`
	LogoutTime              time.Time `json:"logoutTime"`
	Message                 string    `json:"message"`
	LoggedOutFromAllDevices bool      `json:"loggedOutFromAllDevices"`
}
