package model

import "time"

// Role names stored in users.role.  MEMBER is the default for everyone who
// registers; ADMIN additionally curates the catalog (featuring items).
const (
    RoleMember = "MEMBER"
    RoleAdmin  = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address (stored lowercased).
//  Name         – display name shown alongside listings.
//  PasswordHash – bcrypt hashed password.
//  Role         – role name (MEMBER or ADMIN).
//  AvatarURL    – optional URL of the user's avatar image.
//  Points       – current point balance.  Mutated only by redemptions and
//                 swap completion credits, never set directly by handlers.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    Name         string    // users.name
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    AvatarURL    *string   // users.avatar_url (nullable)
    Points       int64     // users.points
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
