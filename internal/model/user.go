package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Accounts are created lazily: the first successful CAS login
// (or the first reference to a netid from a write endpoint) inserts the
// row.  Users are never deleted in normal operation; deletion is
// refused while the user still owns listings or has placed bids.
//
// Fields:
//
//	ID        – primary key identifier of the user.
//	NetID     – campus-issued identifier; the natural key.
//	Email     – derived as netid@<EMAIL_DOMAIN> at creation time.
//	CreatedAt – timestamp of creation.
type User struct {
	ID        uint64    // users.id
	NetID     string    // users.netid
	Email     string    // users.email
	CreatedAt time.Time // users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// UserRef is a tagged reference to a user: either the surrogate ID or
// the netid.  Endpoints historically accepted one or the other
// inconsistently; resolution is funneled through a single repository
// method that takes this union.
type UserRef struct {
	ID    uint64 // non-zero when referencing by surrogate key
	NetID string // non-empty when referencing by campus identifier
}

// ByID returns a UserRef addressing a user by surrogate key.
func ByID(id uint64) UserRef { return UserRef{ID: id} }

// ByNetID returns a UserRef addressing a user by campus identifier.
func ByNetID(netid string) UserRef { return UserRef{NetID: netid} }
