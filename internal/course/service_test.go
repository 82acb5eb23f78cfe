// AngelaMos | 2026
// service_test.go

package course

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/profile"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type memRepo struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	courses  map[string]*Course
	sections map[string]*Section
	profiles map[string]*profile.Ref
}

func newMemRepo() *memRepo {
	return &memRepo{
		courses:  map[string]*Course{},
		sections: map[string]*Section{},
		profiles: map[string]*profile.Ref{},
	}
}

func (m *memRepo) WithinTx(_ context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *memRepo) CreateCourse(_ context.Context, c *Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.Code == c.Code {
			return ErrDuplicateCourse
		}
	}
	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *memRepo) GetCourse(_ context.Context, id string) (*Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) ListCourses(context.Context) ([]Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Course{}
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memRepo) LockProfile(_ context.Context, id string) (*profile.Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) CreateSection(_ context.Context, s *Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[s.CourseID]; !ok {
		return core.ErrNotFound
	}
	for _, existing := range m.sections {
		if existing.CourseID == s.CourseID && existing.Code == s.Code && existing.Period == s.Period {
			return ErrDuplicateSection
		}
	}
	cp := *s
	m.sections[s.ID] = &cp
	return nil
}

func (m *memRepo) GetSection(_ context.Context, id string) (*Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) LockSection(ctx context.Context, id string) (*Section, error) {
	return m.GetSection(ctx, id)
}

func (m *memRepo) UpdateCapacity(_ context.Context, id string, maxCapacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return core.ErrNotFound
	}
	s.MaxCapacity = maxCapacity
	return nil
}

func (m *memRepo) ListSections(_ context.Context, params ListSectionsParams) ([]Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Section{}
	for _, s := range m.sections {
		if params.CourseID != "" && s.CourseID != params.CourseID {
			continue
		}
		if params.Period != "" && s.Period != params.Period {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func coordinator() *rbac.Actor {
	return rbac.NewActor("coord", false, rbac.ProfileGrant{
		ProfileID:     "p-coord",
		Kind:          rbac.KindOther,
		ProfileActive: true,
		RoleActive:    true,
		Permissions: map[string]struct{}{
			rbac.PermManageCourses:  {},
			rbac.PermManageSections: {},
		},
	})
}

func setup(t *testing.T) (*Service, *memRepo, *Course) {
	t.Helper()
	repo := newMemRepo()
	repo.profiles["prof"] = &profile.Ref{ID: "prof", Kind: rbac.KindProfessor, IsActive: true, RoleActive: true}
	repo.profiles["student"] = &profile.Ref{ID: "student", Kind: rbac.KindStudent, IsActive: true, RoleActive: true}
	repo.profiles["retired"] = &profile.Ref{ID: "retired", Kind: rbac.KindProfessor, IsActive: false, RoleActive: true}

	svc := NewService(repo)
	c, err := svc.CreateCourse(context.Background(), coordinator(), CreateCourseRequest{
		Code: "mat101", Name: "Calculus I", Credits: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "MAT101", c.Code)

	return svc, repo, c
}

func TestCreateSection(t *testing.T) {
	svc, _, c := setup(t)
	ctx := context.Background()

	s, err := svc.CreateSection(ctx, coordinator(), c.ID, CreateSectionRequest{
		Code: "a", Period: "2026-1", ProfessorProfileID: "prof", MaxCapacity: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "A", s.Code)
	assert.Equal(t, 30, s.AvailableSeats())

	_, err = svc.CreateSection(ctx, coordinator(), c.ID, CreateSectionRequest{
		Code: "A", Period: "2026-1", ProfessorProfileID: "prof", MaxCapacity: 10,
	})
	require.ErrorIs(t, err, ErrDuplicateSection)

	_, err = svc.CreateSection(ctx, coordinator(), c.ID, CreateSectionRequest{
		Code: "A", Period: "2026-2", ProfessorProfileID: "prof", MaxCapacity: 10,
	})
	require.NoError(t, err)
}

func TestCreateSectionInvariants(t *testing.T) {
	svc, _, c := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   *rbac.Actor
		req     CreateSectionRequest
		wantErr error
	}{
		{
			name:    "no permission",
			actor:   rbac.NewActor("x", false),
			req:     CreateSectionRequest{Code: "B", Period: "2026-1", ProfessorProfileID: "prof", MaxCapacity: 5},
			wantErr: rbac.ErrPermissionDenied,
		},
		{
			name:    "zero capacity",
			actor:   coordinator(),
			req:     CreateSectionRequest{Code: "B", Period: "2026-1", ProfessorProfileID: "prof", MaxCapacity: 0},
			wantErr: ErrInvalidCapacity,
		},
		{
			name:    "student as professor",
			actor:   coordinator(),
			req:     CreateSectionRequest{Code: "B", Period: "2026-1", ProfessorProfileID: "student", MaxCapacity: 5},
			wantErr: rbac.ErrProfileKindMismatch,
		},
		{
			name:    "inactive professor",
			actor:   coordinator(),
			req:     CreateSectionRequest{Code: "B", Period: "2026-1", ProfessorProfileID: "retired", MaxCapacity: 5},
			wantErr: ErrProfessorInactive,
		},
		{
			name:    "unknown professor",
			actor:   coordinator(),
			req:     CreateSectionRequest{Code: "B", Period: "2026-1", ProfessorProfileID: "ghost", MaxCapacity: 5},
			wantErr: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSection(ctx, tt.actor, c.ID, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateCapacityRespectsEnrolled(t *testing.T) {
	svc, repo, c := setup(t)
	ctx := context.Background()

	s, err := svc.CreateSection(ctx, coordinator(), c.ID, CreateSectionRequest{
		Code: "A", Period: "2026-1", ProfessorProfileID: "prof", MaxCapacity: 10,
	})
	require.NoError(t, err)

	repo.sections[s.ID].EnrolledCount = 6

	_, err = svc.UpdateCapacity(ctx, coordinator(), s.ID, 5)
	require.ErrorIs(t, err, ErrCapacityBelowSeat)

	updated, err := svc.UpdateCapacity(ctx, coordinator(), s.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AvailableSeats())
}
