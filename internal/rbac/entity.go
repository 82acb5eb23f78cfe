// AngelaMos | 2026
// entity.go

package rbac

import (
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/academic-core/internal/core"
)

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrScopeMismatch       = errors.New("profile does not belong to the requesting user")
	ErrProfileKindMismatch = errors.New("profile role kind does not match the required kind")
	ErrUnknownPermission   = fmt.Errorf("unknown permission: %w", core.ErrInvalidInput)
	ErrRoleInUse           = errors.New("role is assigned to one or more profiles")
	ErrInvalidRoleKind     = fmt.Errorf("invalid role kind: %w", core.ErrInvalidInput)
)

// RoleKind classifies roles for domain relations. A student-kind profile may
// hold enrollments; a professor-kind profile may own sections.
type RoleKind string

const (
	KindStudent   RoleKind = "student"
	KindProfessor RoleKind = "professor"
	KindOther     RoleKind = "other"
)

func ParseRoleKind(s string) (RoleKind, error) {
	switch RoleKind(s) {
	case KindStudent, KindProfessor, KindOther:
		return RoleKind(s), nil
	}
	return "", ErrInvalidRoleKind
}

type Permission struct {
	Code        string `db:"code"        json:"code"`
	Name        string `db:"name"        json:"name"`
	Description string `db:"description" json:"description"`
}

type Role struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Kind        RoleKind  `db:"kind"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`

	Permissions []string `db:"-"`
}

// ProfileGrant is one profile of the actor together with what its role
// currently grants.
type ProfileGrant struct {
	ProfileID     string
	RoleID        string
	RoleName      string
	Kind          RoleKind
	ProfileActive bool
	RoleActive    bool
	Permissions   map[string]struct{}
}

// Active reports whether both the profile and its role are switched on.
// An inactive grant confers nothing.
func (g *ProfileGrant) Active() bool {
	return g.ProfileActive && g.RoleActive
}

func (g *ProfileGrant) grants(code string) bool {
	if !g.Active() {
		return false
	}
	_, ok := g.Permissions[code]
	return ok
}

// actorRow is one line of the LoadActor join. Profile and role columns are
// nullable because a user may hold no profile at all.
type actorRow struct {
	UserID         string  `db:"user_id"`
	IsSuperuser    bool    `db:"is_superuser"`
	ProfileID      *string `db:"profile_id"`
	ProfileActive  *bool   `db:"profile_active"`
	RoleID         *string `db:"role_id"`
	RoleName       *string `db:"role_name"`
	RoleKind       *string `db:"role_kind"`
	RoleActive     *bool   `db:"role_active"`
	PermissionCode *string `db:"permission_code"`
}
