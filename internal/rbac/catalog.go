// AngelaMos | 2026
// catalog.go

package rbac

import "sort"

const (
	PermViewOwnEnrollment      = "view_own_enrollment"
	PermViewSectionEnrollments = "view_section_enrollments"
	PermViewAllEnrollments     = "view_all_enrollments"
	PermGradeEnrollment        = "grade_enrollment"
	PermManageEnrollments      = "manage_enrollments"
	PermManageCourses          = "manage_courses"
	PermManageSections         = "manage_sections"
	PermManageUsers            = "manage_users"
)

// catalog is the source of truth for valid capability names. It is never
// mutated at runtime; Bootstrap mirrors it into the permissions table.
var catalog = map[string]Permission{
	PermViewOwnEnrollment: {
		Code:        PermViewOwnEnrollment,
		Name:        "View Own Enrollment",
		Description: "Can view their own enrollments",
	},
	PermViewSectionEnrollments: {
		Code:        PermViewSectionEnrollments,
		Name:        "View Section Enrollments",
		Description: "Can view enrollments in their teaching sections",
	},
	PermViewAllEnrollments: {
		Code:        PermViewAllEnrollments,
		Name:        "View All Enrollments",
		Description: "Can view all enrollments in the system",
	},
	PermGradeEnrollment: {
		Code:        PermGradeEnrollment,
		Name:        "Grade Enrollment",
		Description: "Can grade student enrollments in their sections",
	},
	PermManageEnrollments: {
		Code:        PermManageEnrollments,
		Name:        "Manage Enrollments",
		Description: "Can create, update, and delete enrollments",
	},
	PermManageCourses: {
		Code:        PermManageCourses,
		Name:        "Manage Courses",
		Description: "Can create, update, and delete courses",
	},
	PermManageSections: {
		Code:        PermManageSections,
		Name:        "Manage Sections",
		Description: "Can create, update, and delete sections",
	},
	PermManageUsers: {
		Code:        PermManageUsers,
		Name:        "Manage Users",
		Description: "Can create, update, and delete users",
	},
}

func IsKnownPermission(code string) bool {
	_, ok := catalog[code]
	return ok
}

func LookupPermission(code string) (Permission, bool) {
	p, ok := catalog[code]
	return p, ok
}

// Catalog returns every known permission ordered by code.
func Catalog() []Permission {
	perms := make([]Permission, 0, len(catalog))
	for _, p := range catalog {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Code < perms[j].Code })
	return perms
}

func catalogCodes() []string {
	codes := make([]string, 0, len(catalog))
	for code := range catalog {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type RoleTemplate struct {
	Name        string
	Description string
	Kind        RoleKind
	Permissions []string
}

var (
	studentPerms   = []string{PermViewOwnEnrollment}
	professorPerms = []string{PermViewSectionEnrollments, PermGradeEnrollment}
)

// DefaultRoles is the fixed Role to Kind table applied at bootstrap.
var DefaultRoles = []RoleTemplate{
	{"Student", "General student with access to view own enrollments and grades", KindStudent, studentPerms},
	{"Undergraduate Student", "Undergraduate student with basic permissions", KindStudent, studentPerms},
	{"Graduate Student", "Graduate student with additional research permissions", KindStudent, studentPerms},
	{"PhD Student", "PhD student with research and teaching permissions", KindStudent, studentPerms},
	{"PhD Candidate", "PhD candidate with advanced research permissions", KindStudent, studentPerms},

	{"Professor", "Professor with access to view and grade student enrollments in their sections", KindProfessor, professorPerms},
	{"Associate Professor", "Associate Professor with teaching and grading permissions", KindProfessor, professorPerms},
	{"Full Professor", "Full Professor with teaching and grading permissions", KindProfessor, professorPerms},
	{"Teaching Assistant", "Teaching Assistant who can grade but with limited permissions", KindProfessor, professorPerms},
	{"Adjunct Professor", "Adjunct Professor with teaching permissions", KindProfessor, professorPerms},
	{"Visiting Professor", "Visiting Professor with temporary teaching permissions", KindProfessor, professorPerms},

	{
		"Academic Coordinator",
		"Academic coordinator with access to manage courses, sections, and enrollments",
		KindOther,
		[]string{PermViewAllEnrollments, PermManageEnrollments, PermManageCourses, PermManageSections},
	},
	{"Administrator", "Administrator with full access to the system", KindOther, catalogCodes()},
}
