// AngelaMos | 2026
// entity.go

package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

var (
	ErrDuplicateDNI = errors.New("a profile with this DNI already exists")
	ErrRoleInactive = errors.New("role is not active")
	ErrRoleNotFound = fmt.Errorf("role not found: %w", core.ErrInvalidInput)
)

// Profile is one academic capacity held by a user. Kind is derived from the
// role and never stored on the profile row.
type Profile struct {
	ID        string        `db:"id"`
	UserID    string        `db:"user_id"`
	RoleID    string        `db:"role_id"`
	RoleName  string        `db:"role_name"`
	Kind      rbac.RoleKind `db:"role_kind"`
	DNI       string        `db:"dni"`
	ProgramID *string       `db:"program_id"`
	Specialty *string       `db:"specialty"`
	IsActive  bool          `db:"is_active"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

// Ref is the slice of a profile other aggregates need when they bind to it:
// who owns it, what kind it resolves to, and whether it may act.
type Ref struct {
	ID         string        `db:"id"`
	UserID     string        `db:"user_id"`
	RoleID     string        `db:"role_id"`
	Kind       rbac.RoleKind `db:"role_kind"`
	IsActive   bool          `db:"is_active"`
	RoleActive bool          `db:"role_active"`
}

// Usable reports whether the profile and its role are both active.
func (r *Ref) Usable() bool {
	return r.IsActive && r.RoleActive
}
