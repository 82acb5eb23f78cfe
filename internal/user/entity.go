// AngelaMos | 2026
// entity.go

package user

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	IsSuperuser  bool           `db:"is_superuser"`
	TOTPSecret   *string        `db:"totp_secret"`
	TOTPEnabled  bool           `db:"totp_enabled"`
	BackupCodes  pq.StringArray `db:"backup_codes"`
	TokenVersion int            `db:"token_version"`
	LastLoginAt  *time.Time     `db:"last_login_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	DeletedAt    *time.Time     `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) Secret() string {
	if u.TOTPSecret == nil {
		return ""
	}
	return *u.TOTPSecret
}
