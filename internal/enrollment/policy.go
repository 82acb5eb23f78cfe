// AngelaMos | 2026
// policy.go

package enrollment

import (
	"fmt"

	"github.com/carterperez-dev/academic-core/internal/rbac"
)

// CanView decides read access to one enrollment.
func CanView(actor *rbac.Actor, e *Enrollment) bool {
	if actor == nil {
		return false
	}
	if actor.IsSuperuser || actor.HasPermission(rbac.PermViewAllEnrollments) {
		return true
	}
	if grantsAs(actor, e.StudentProfileID, rbac.PermViewOwnEnrollment) {
		return true
	}
	return grantsAs(actor, e.ProfessorProfileID, rbac.PermViewSectionEnrollments)
}

// ResolveGrader picks the profile that grades e on behalf of actor. With a
// scope only that profile is considered. A superuser may grade without a
// matching profile, in which case the returned id is nil.
func ResolveGrader(actor *rbac.Actor, e *Enrollment, scopeProfileID string) (*string, error) {
	if actor == nil {
		return nil, rbac.ErrPermissionDenied
	}

	if scopeProfileID != "" {
		g, ok := actor.Profile(scopeProfileID)
		if !ok {
			return nil, rbac.ErrScopeMismatch
		}
		if actor.IsSuperuser {
			return ptr(g.ProfileID), nil
		}
		if g.Kind != rbac.KindProfessor {
			return nil, fmt.Errorf("grading as %s profile: %w", g.Kind, rbac.ErrProfileKindMismatch)
		}
		if !canGradeAs(actor, g, e) {
			return nil, rbac.ErrPermissionDenied
		}
		return ptr(g.ProfileID), nil
	}

	if actor.IsSuperuser {
		if g, ok := actor.Profile(e.ProfessorProfileID); ok {
			return ptr(g.ProfileID), nil
		}
		return nil, nil
	}

	for _, g := range actor.ProfilesOfKind(rbac.KindProfessor) {
		if canGradeAs(actor, g, e) {
			return ptr(g.ProfileID), nil
		}
	}

	return nil, ErrNoAuthorizedProfile
}

func CanGrade(actor *rbac.Actor, e *Enrollment, scopeProfileID string) bool {
	_, err := ResolveGrader(actor, e, scopeProfileID)
	return err == nil
}

// canGradeAs is the per-profile grading rule: the section's own professor
// profile holding grade_enrollment.
func canGradeAs(actor *rbac.Actor, g *rbac.ProfileGrant, e *Enrollment) bool {
	if actor.IsSuperuser {
		return true
	}
	if g.Kind != rbac.KindProfessor || g.ProfileID != e.ProfessorProfileID {
		return false
	}
	return grantsAs(actor, g.ProfileID, rbac.PermGradeEnrollment)
}

func grantsAs(actor *rbac.Actor, profileID, code string) bool {
	if profileID == "" || !actor.OwnsProfile(profileID) {
		return false
	}
	ok, err := actor.HasPermissionAs(profileID, code)
	return err == nil && ok
}

// Visibility is CanView expressed as a filter over many enrollments.
type Visibility struct {
	All                 bool
	StudentProfileIDs   []string
	ProfessorProfileIDs []string
}

func VisibilityFor(actor *rbac.Actor) Visibility {
	if actor == nil {
		return Visibility{}
	}
	if actor.IsSuperuser || actor.HasPermission(rbac.PermViewAllEnrollments) {
		return Visibility{All: true}
	}

	var v Visibility
	for _, g := range actor.Profiles() {
		if grantsAs(actor, g.ProfileID, rbac.PermViewOwnEnrollment) {
			v.StudentProfileIDs = append(v.StudentProfileIDs, g.ProfileID)
		}
		if grantsAs(actor, g.ProfileID, rbac.PermViewSectionEnrollments) {
			v.ProfessorProfileIDs = append(v.ProfessorProfileIDs, g.ProfileID)
		}
	}
	return v
}

func (v Visibility) Empty() bool {
	return !v.All && len(v.StudentProfileIDs) == 0 && len(v.ProfessorProfileIDs) == 0
}

func (v Visibility) Allows(e *Enrollment) bool {
	if v.All {
		return true
	}
	for _, id := range v.StudentProfileIDs {
		if id == e.StudentProfileID {
			return true
		}
	}
	for _, id := range v.ProfessorProfileIDs {
		if id == e.ProfessorProfileID {
			return true
		}
	}
	return false
}

func ptr(s string) *string {
	return &s
}
