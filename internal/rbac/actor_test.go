// AngelaMos | 2026
// actor_test.go

package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantOf(profileID string, kind RoleKind, codes ...string) ProfileGrant {
	perms := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		perms[c] = struct{}{}
	}
	return ProfileGrant{
		ProfileID:     profileID,
		RoleID:        "role-" + profileID,
		Kind:          kind,
		ProfileActive: true,
		RoleActive:    true,
		Permissions:   perms,
	}
}

func TestHasPermissionMatchesDefaultRoleGrants(t *testing.T) {
	for _, tmpl := range DefaultRoles {
		actor := NewActor("u1", false, grantOf("p1", tmpl.Kind, tmpl.Permissions...))

		granted := make(map[string]bool, len(tmpl.Permissions))
		for _, c := range tmpl.Permissions {
			granted[c] = true
		}

		for _, perm := range Catalog() {
			assert.Equal(t, granted[perm.Code], actor.HasPermission(perm.Code),
				"role %q permission %q", tmpl.Name, perm.Code)
		}
	}
}

func TestSuperuserHasEveryPermission(t *testing.T) {
	actor := NewActor("root", true)

	for _, perm := range Catalog() {
		assert.True(t, actor.HasPermission(perm.Code))
		ok, err := actor.HasPermissionAs("someone-elses-profile", perm.Code)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Len(t, actor.PermissionCodes(), len(Catalog()))
}

func TestStudentAndProfessorProfiles(t *testing.T) {
	actor := NewActor("u1", false,
		grantOf("student", KindStudent, PermViewOwnEnrollment),
		grantOf("professor", KindProfessor, PermViewSectionEnrollments, PermGradeEnrollment),
	)

	assert.True(t, actor.HasPermission(PermGradeEnrollment))
	assert.True(t, actor.HasPermission(PermViewOwnEnrollment))
	assert.False(t, actor.HasPermission(PermManageCourses))

	ok, err := actor.HasPermissionAs("student", PermGradeEnrollment)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = actor.HasPermissionAs("professor", PermGradeEnrollment)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t,
		[]string{PermGradeEnrollment, PermViewOwnEnrollment, PermViewSectionEnrollments},
		actor.PermissionCodes(),
	)
}

func TestHasPermissionAsForeignProfile(t *testing.T) {
	actor := NewActor("u1", false, grantOf("mine", KindStudent, PermViewOwnEnrollment))

	ok, err := actor.HasPermissionAs("theirs", PermViewOwnEnrollment)
	require.ErrorIs(t, err, ErrScopeMismatch)
	assert.False(t, ok)

	_, err = actor.PermissionCodesAs("theirs")
	require.ErrorIs(t, err, ErrScopeMismatch)
}

func TestInactiveRoleGrantsNothing(t *testing.T) {
	g := grantOf("p1", KindProfessor, PermGradeEnrollment)
	g.RoleActive = false
	actor := NewActor("u1", false, g)

	assert.False(t, actor.HasPermission(PermGradeEnrollment))
	codes, err := actor.PermissionCodesAs("p1")
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestInactiveProfileGrantsNothing(t *testing.T) {
	g := grantOf("p1", KindStudent, PermViewOwnEnrollment)
	g.ProfileActive = false
	actor := NewActor("u1", false, g)

	assert.False(t, actor.HasPermission(PermViewOwnEnrollment))
	assert.Empty(t, actor.ProfilesOfKind(KindStudent))
}

func TestProfilesOfKindSkipsInactiveRole(t *testing.T) {
	retired := grantOf("t1", KindProfessor, PermGradeEnrollment)
	retired.RoleActive = false

	actor := NewActor("u1", false, retired, grantOf("t2", KindProfessor))

	profs := actor.ProfilesOfKind(KindProfessor)
	require.Len(t, profs, 1)
	assert.Equal(t, "t2", profs[0].ProfileID)
	assert.False(t, retired.Active())
}

func TestNoProfilesGrantsNothing(t *testing.T) {
	actor := NewActor("u1", false)

	for _, perm := range Catalog() {
		assert.False(t, actor.HasPermission(perm.Code))
	}
	assert.Empty(t, actor.PermissionCodes())
}

func TestProfilesOfKind(t *testing.T) {
	actor := NewActor("u1", false,
		grantOf("s1", KindStudent),
		grantOf("t1", KindProfessor),
		grantOf("t2", KindProfessor),
	)

	profs := actor.ProfilesOfKind(KindProfessor)
	require.Len(t, profs, 2)
	assert.Equal(t, "t1", profs[0].ProfileID)
	assert.Equal(t, "t2", profs[1].ProfileID)
}

func TestBuildActorGroupsJoinRows(t *testing.T) {
	str := func(s string) *string { return &s }
	yes := true

	rows := []actorRow{
		{UserID: "u1", ProfileID: str("p1"), ProfileActive: &yes, RoleID: str("r1"),
			RoleName: str("Professor"), RoleKind: str("professor"), RoleActive: &yes,
			PermissionCode: str(PermGradeEnrollment)},
		{UserID: "u1", ProfileID: str("p1"), ProfileActive: &yes, RoleID: str("r1"),
			RoleName: str("Professor"), RoleKind: str("professor"), RoleActive: &yes,
			PermissionCode: str(PermViewSectionEnrollments)},
		{UserID: "u1", ProfileID: str("p2"), ProfileActive: &yes, RoleID: str("r2"),
			RoleName: str("Student"), RoleKind: str("student"), RoleActive: &yes},
	}

	actor := buildActor(rows)
	require.NotNil(t, actor)
	require.Len(t, actor.Profiles(), 2)

	p1, ok := actor.Profile("p1")
	require.True(t, ok)
	assert.Equal(t, KindProfessor, p1.Kind)
	assert.Len(t, p1.Permissions, 2)

	p2, ok := actor.Profile("p2")
	require.True(t, ok)
	assert.Empty(t, p2.Permissions)
}

func TestBuildActorUserWithoutProfiles(t *testing.T) {
	actor := buildActor([]actorRow{{UserID: "u1", IsSuperuser: true}})
	require.NotNil(t, actor)
	assert.True(t, actor.IsSuperuser)
	assert.Empty(t, actor.Profiles())

	assert.Nil(t, buildActor(nil))
}

func TestDefaultRolesOnlyReferenceCatalog(t *testing.T) {
	names := make(map[string]bool)
	for _, tmpl := range DefaultRoles {
		assert.False(t, names[tmpl.Name], "duplicate role %q", tmpl.Name)
		names[tmpl.Name] = true
		for _, code := range tmpl.Permissions {
			assert.True(t, IsKnownPermission(code), "role %q code %q", tmpl.Name, code)
		}
	}
	assert.Len(t, DefaultRoles, 13)
	assert.Len(t, Catalog(), 8)
}
