// Package models holds the SIVEAL domain entities.
package models

import "time"

// Roles.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// User is an account. PasswordHash never leaves the service layer.
type User struct {
	ID            int64      `bson:"id"`
	Username      string     `bson:"username"`
	Email         string     `bson:"email"`
	PasswordHash  string     `bson:"password"`
	Role          string     `bson:"role"`
	FirstName     string     `bson:"firstName,omitempty"`
	LastName      string     `bson:"lastName,omitempty"`
	Bio           string     `bson:"bio,omitempty"`
	Location      string     `bson:"location,omitempty"`
	Website       string     `bson:"website,omitempty"`
	Avatar        string     `bson:"avatar,omitempty"`
	IsActive      bool       `bson:"isActive"`
	LastLogin     *time.Time `bson:"lastLogin,omitempty"`
	LoginAttempts int        `bson:"loginAttempts"`
	LockUntil     *time.Time `bson:"lockUntil,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

// IsLocked reports whether the lockout window is still open at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// FullName falls back to the username when either name part is missing.
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}

	return u.Username
}

// UserPatch is a partial profile update; nil fields are left untouched.
type UserPatch struct {
	Email        *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	Bio          *string
	Location     *string
	Website      *string
	Avatar       *string
}

// Identity is the authenticated caller decoded from a bearer token.
type Identity struct {
	ID       int64
	Username string
	Role     string
}

// HasRole reports whether the caller has one of roles.
func (i *Identity) HasRole(roles ...string) bool {
	if i == nil {
		return false
	}

	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}

	return false
}

// AdminStats is the dashboard summary.
type AdminStats struct {
	TotalUsers    int64
	TotalArticles int64
	TotalComments int64
	TotalViews    int64
}
