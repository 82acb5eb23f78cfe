// AngelaMos | 2026
// policy_test.go

package enrollment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/academic-core/internal/rbac"
)

func TestCanViewMatchesVisibility(t *testing.T) {
	inactive := professorGrant("P")
	inactive.RoleActive = false

	actors := map[string]*rbac.Actor{
		"nil":               nil,
		"no profiles":       rbac.NewActor("u0", false),
		"student s1":        rbac.NewActor("u1", false, studentGrant("s1")),
		"professor P":       rbac.NewActor("uP", false, professorGrant("P")),
		"student+professor": rbac.NewActor("uX", false, studentGrant("s2"), professorGrant("Q")),
		"inactive role":     rbac.NewActor("uI", false, inactive),
		"admin":             adminActor(),
		"superuser":         rbac.NewActor("root", true),
	}

	enrollments := []*Enrollment{
		{ID: "e1", StudentProfileID: "s1", ProfessorProfileID: "P"},
		{ID: "e2", StudentProfileID: "s2", ProfessorProfileID: "P"},
		{ID: "e3", StudentProfileID: "s3", ProfessorProfileID: "Q"},
	}

	for name, actor := range actors {
		vis := VisibilityFor(actor)
		for _, e := range enrollments {
			assert.Equal(t, CanView(actor, e), vis.Allows(e), "%s on %s", name, e.ID)
		}
	}
}

func TestCanViewCases(t *testing.T) {
	e := &Enrollment{StudentProfileID: "s1", ProfessorProfileID: "P"}

	assert.True(t, CanView(rbac.NewActor("u1", false, studentGrant("s1")), e))
	assert.True(t, CanView(rbac.NewActor("uP", false, professorGrant("P")), e))
	assert.False(t, CanView(rbac.NewActor("uQ", false, professorGrant("Q")), e))
	assert.False(t, CanView(rbac.NewActor("u2", false, studentGrant("s2")), e))
	assert.True(t, CanView(rbac.NewActor("root", true), e))
	assert.False(t, CanView(nil, e))

	// a student role on the section's professor id grants nothing
	odd := studentGrant("P")
	assert.False(t, CanView(rbac.NewActor("uO", false, odd), e))
}

func TestVisibilityEmpty(t *testing.T) {
	assert.True(t, VisibilityFor(nil).Empty())
	assert.True(t, VisibilityFor(rbac.NewActor("u0", false)).Empty())
	assert.False(t, VisibilityFor(adminActor()).Empty())
	assert.False(t, VisibilityFor(rbac.NewActor("u1", false, studentGrant("s1"))).Empty())
}

func TestResolveGrader(t *testing.T) {
	e := &Enrollment{StudentProfileID: "s1", ProfessorProfileID: "P"}

	inactiveP := professorGrant("P")
	inactiveP.ProfileActive = false

	noGrade := professorGrant("P")
	noGrade.Permissions = perms(rbac.PermViewSectionEnrollments)

	tests := []struct {
		name    string
		actor   *rbac.Actor
		scope   string
		want    *string
		wantErr error
	}{
		{"section professor", rbac.NewActor("uP", false, professorGrant("P")), "", ptr("P"), nil},
		{"scoped section professor", rbac.NewActor("uP", false, professorGrant("P")), "P", ptr("P"), nil},
		{"other professor", rbac.NewActor("uQ", false, professorGrant("Q")), "", nil, ErrNoAuthorizedProfile},
		{"scoped other professor", rbac.NewActor("uQ", false, professorGrant("Q")), "Q", nil, rbac.ErrPermissionDenied},
		{"inactive profile", rbac.NewActor("uP", false, inactiveP), "", nil, ErrNoAuthorizedProfile},
		{"role without grade permission", rbac.NewActor("uP", false, noGrade), "", nil, ErrNoAuthorizedProfile},
		{"student only", rbac.NewActor("u1", false, studentGrant("s1")), "", nil, ErrNoAuthorizedProfile},
		{"scope not owned", rbac.NewActor("uP", false, professorGrant("P")), "Z", nil, rbac.ErrScopeMismatch},
		{"scope of student kind", rbac.NewActor("uX", false, studentGrant("s9"), professorGrant("P")), "s9", nil, rbac.ErrProfileKindMismatch},
		{"superuser holding section profile", rbac.NewActor("root", true, professorGrant("P")), "", ptr("P"), nil},
		{"superuser without profile", rbac.NewActor("root", true), "", nil, nil},
		{"nil actor", nil, "", nil, rbac.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveGrader(tt.actor, e, tt.scope)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				assert.False(t, CanGrade(tt.actor, e, tt.scope))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, CanGrade(tt.actor, e, tt.scope))
		})
	}
}

func TestNoAuthorizedProfileIsPermissionDenied(t *testing.T) {
	assert.ErrorIs(t, ErrNoAuthorizedProfile, rbac.ErrPermissionDenied)
}
