package model

import "time"

// Role is the authorization level stored on an account and embedded in
// access tokens.
type Role string

const (
	RoleUser      Role = "User"
	RoleModerator Role = "Moderator"
	RoleAdmin     Role = "Admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Account represents a credential holder as stored in the `accounts`
// table. PasswordHash is never serialized, so neither API responses nor
// cached copies carry it.
//
// Fields:
//
//	ID           – primary key identifier.
//	Username     – unique, case-sensitive login name.
//	Email        – unique address, stored lower-cased.
//	PasswordHash – bcrypt hash of the password.
//	Role         – authorization level.
//	CreatedAt    – UTC creation timestamp.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a Account) GetID() int64 { return a.ID }

// Public returns a copy of a without the password hash.
func (a Account) Public() Account {
	a.PasswordHash = ""
	return a
}
