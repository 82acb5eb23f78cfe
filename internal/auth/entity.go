// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// LoginState is the position of one login attempt in the step-up flow.
// It lives with the attempt, never on the user record.
type LoginState string

const (
	StateUnauthenticated     LoginState = "unauthenticated"
	StateCredentialsVerified LoginState = "credentials_verified"
	StatePendingSecondFactor LoginState = "pending_second_factor"
	StateAuthenticated       LoginState = "authenticated"
)

const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

const (
	tokenTypeAccess  = "access"
	tokenTypePending = "mfa_pending"
)

// Session is a stored refresh token. SecondFactor records whether the
// login that started the family passed step-up, so rotated access tokens
// keep the same assurance.
type Session struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	SecondFactor bool       `db:"second_factor"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

func (s *Session) IsValid() bool {
	return !s.IsExpired() && !s.IsRevoked() && !s.IsUsed
}
