package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table. The raw
// token handed to the client is never stored; only its SHA-256 hash.
// Every token minted by rotating another one inherits its FamilyID, so a
// replayed token can revoke the whole chain that descends from one login.
//
// Fields:
//
//	ID        – primary key identifier.
//	AccountID – owner of the token.
//	TokenHash – SHA-256 hex digest of the token value.
//	FamilyID  – UUID shared by one login and all of its rotations.
//	ExpiresAt – expiration timestamp of the token.
//	Revoked   – true once the token was rotated or logged out.
//	RevokedAt – when the token was revoked (nil while active).
//	CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        int64      // refresh_tokens.id
	AccountID int64      // refresh_tokens.account_id
	TokenHash string     // refresh_tokens.token_hash
	FamilyID  string     // refresh_tokens.family_id
	ExpiresAt time.Time  // refresh_tokens.expires_at
	Revoked   bool       // refresh_tokens.revoked
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Active reports whether the token can still be exchanged at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
