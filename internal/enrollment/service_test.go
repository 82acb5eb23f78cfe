// AngelaMos | 2026
// service_test.go

package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/course"
	"github.com/carterperez-dev/academic-core/internal/profile"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type memRepo struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	sections    map[string]*course.Section
	profiles    map[string]*profile.Ref
	enrollments map[string]*Enrollment
}

func newMemRepo() *memRepo {
	return &memRepo{
		sections:    map[string]*course.Section{},
		profiles:    map[string]*profile.Ref{},
		enrollments: map[string]*Enrollment{},
	}
}

func (m *memRepo) WithinTx(_ context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *memRepo) LockSection(_ context.Context, id string) (*course.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s
	cp.EnrolledCount = 0
	for _, e := range m.enrollments {
		if e.SectionID == id && e.Status.OccupiesSeat() {
			cp.EnrolledCount++
		}
	}
	return &cp, nil
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

func (m *memRepo) GetForUpdate(ctx context.Context, id string) (*Enrollment, error) {
	return m.Get(ctx, id)
}

func (m *memRepo) Get(_ context.Context, id string) (*Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memRepo) Exists(_ context.Context, studentProfileID, sectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentProfileID == studentProfileID && e.SectionID == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Insert(_ context.Context, e *Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.enrollments {
		if existing.StudentProfileID == e.StudentProfileID && existing.SectionID == e.SectionID {
			return ErrDuplicateEnrollment
		}
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.enrollments[e.ID] = &cp
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return core.ErrNotFound
	}
	e.Status = status
	return nil
}

func (m *memRepo) UpdateGrade(_ context.Context, e *Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.enrollments[e.ID]
	if !ok {
		return core.ErrNotFound
	}
	stored.Grade = e.Grade
	stored.GradeNotes = e.GradeNotes
	stored.GradedByID = e.GradedByID
	stored.GradedAt = e.GradedAt
	return nil
}

func (m *memRepo) List(_ context.Context, vis Visibility, params ListParams) ([]Enrollment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Enrollment{}
	for _, e := range m.enrollments {
		if !vis.Allows(e) {
			continue
		}
		if params.SectionID != "" && e.SectionID != params.SectionID {
			continue
		}
		if params.Status != "" && e.Status != params.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *memRepo) addProfile(id string, kind rbac.RoleKind) {
	m.profiles[id] = &profile.Ref{
		ID:         id,
		UserID:     "u-" + id,
		Kind:       kind,
		IsActive:   true,
		RoleActive: true,
	}
}

func (m *memRepo) addSection(id, professorID string, capacity int) {
	m.sections[id] = &course.Section{
		ID:                 id,
		CourseID:           "c1",
		Code:               id,
		Period:             "2026-1",
		ProfessorProfileID: professorID,
		MaxCapacity:        capacity,
	}
}

func perms(codes ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out
}

func studentGrant(id string) rbac.ProfileGrant {
	return rbac.ProfileGrant{
		ProfileID:     id,
		Kind:          rbac.KindStudent,
		ProfileActive: true,
		RoleActive:    true,
		Permissions:   perms(rbac.PermViewOwnEnrollment),
	}
}

func professorGrant(id string) rbac.ProfileGrant {
	return rbac.ProfileGrant{
		ProfileID:     id,
		Kind:          rbac.KindProfessor,
		ProfileActive: true,
		RoleActive:    true,
		Permissions:   perms(rbac.PermViewSectionEnrollments, rbac.PermGradeEnrollment),
	}
}

func adminActor() *rbac.Actor {
	return rbac.NewActor("admin", false, rbac.ProfileGrant{
		ProfileID:     "adm",
		Kind:          rbac.KindOther,
		ProfileActive: true,
		RoleActive:    true,
		Permissions:   perms(rbac.PermManageEnrollments, rbac.PermViewAllEnrollments),
	})
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil)
}

func enroll(t *testing.T, svc *Service, studentID, sectionID string) *Enrollment {
	t.Helper()
	e, err := svc.Create(context.Background(), adminActor(), CreateEnrollmentRequest{
		StudentProfileID: studentID,
		SectionID:        sectionID,
		Cost:             decimal.RequireFromString("150.00"),
	})
	require.NoError(t, err)
	return e
}

func TestCreateLastSeatIsTakenOnce(t *testing.T) {
	repo := newMemRepo()
	repo.addProfile("prof", rbac.KindProfessor)
	repo.addSection("sec", "prof", 1)
	repo.addProfile("s1", rbac.KindStudent)
	repo.addProfile("s2", rbac.KindStudent)

	svc := newTestService(repo)

	var (
		g      errgroup.Group
		full   atomic.Int32
		placed atomic.Int32
	)
	for _, id := range []string{"s1", "s2"} {
		g.Go(func() error {
			_, err := svc.Create(context.Background(), adminActor(), CreateEnrollmentRequest{
				StudentProfileID: id,
				SectionID:        "sec",
			})
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, ErrCapacityExceeded):
				full.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), placed.Load())
	assert.Equal(t, int32(1), full.Load())
}

func TestCreateNeverOverfillsSection(t *testing.T) {
	const capacity, students = 5, 40

	repo := newMemRepo()
	repo.addProfile("prof", rbac.KindProfessor)
	repo.addSection("sec", "prof", capacity)
	for i := range students {
		repo.addProfile(fmt.Sprintf("s%d", i), rbac.KindStudent)
	}

	svc := newTestService(repo)

	var (
		g      errgroup.Group
		placed atomic.Int32
	)
	for i := range students {
		g.Go(func() error {
			_, err := svc.Create(context.Background(), adminActor(), CreateEnrollmentRequest{
				StudentProfileID: fmt.Sprintf("s%d", i),
				SectionID:        "sec",
			})
			if err == nil {
				placed.Add(1)
				return nil
			}
			if errors.Is(err, ErrCapacityExceeded) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(capacity), placed.Load())

	sec, err := repo.LockSection(context.Background(), "sec")
	require.NoError(t, err)
	assert.Equal(t, capacity, sec.EnrolledCount)
}

func TestCancelledEnrollmentFreesSeat(t *testing.T) {
	repo := newMemRepo()
	repo.addProfile("prof", rbac.KindProfessor)
	repo.addSection("sec", "prof", 1)
	repo.addProfile("s1", rbac.KindStudent)
	repo.addProfile("s2", rbac.KindStudent)

	svc := newTestService(repo)
	first := enroll(t, svc, "s1", "sec")

	_, err := svc.Create(context.Background(), adminActor(), CreateEnrollmentRequest{
		StudentProfileID: "s2",
		SectionID:        "sec",
	})
	require.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = svc.UpdateStatus(context.Background(), adminActor(), first.ID, StatusCancelled)
	require.NoError(t, err)

	enroll(t, svc, "s2", "sec")
}

func TestCreateRejections(t *testing.T) {
	repo := newMemRepo()
	repo.addProfile("prof", rbac.KindProfessor)
	repo.addSection("sec", "prof", 10)
	repo.addProfile("s1", rbac.KindStudent)
	repo.addProfile("idle", rbac.KindStudent)
	repo.profiles["idle"].IsActive = false

	svc := newTestService(repo)
	enroll(t, svc, "s1", "sec")

	tests := []struct {
		name    string
		actor   *rbac.Actor
		req     CreateEnrollmentRequest
		wantErr error
	}{
		{
			name:    "duplicate pair",
			actor:   adminActor(),
			req:     CreateEnrollmentRequest{StudentProfileID: "s1", SectionID: "sec"},
			wantErr: ErrDuplicateEnrollment,
		},
		{
			name:    "professor profile as student",
			actor:   adminActor(),
			req:     CreateEnrollmentRequest{StudentProfileID: "prof", SectionID: "sec"},
			wantErr: rbac.ErrProfileKindMismatch,
		},
		{
			name:    "inactive student",
			actor:   adminActor(),
			req:     CreateEnrollmentRequest{StudentProfileID: "idle", SectionID: "sec"},
			wantErr: ErrInactiveProfile,
		},
		{
			name:    "unknown section",
			actor:   adminActor(),
			req:     CreateEnrollmentRequest{StudentProfileID: "s1", SectionID: "nope"},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "negative cost",
			actor:   adminActor(),
			req:     CreateEnrollmentRequest{StudentProfileID: "s1", SectionID: "sec", Cost: decimal.NewFromInt(-1)},
			wantErr: core.ErrInvalidInput,
		},
		{
			name:    "someone else's profile",
			actor:   rbac.NewActor("u2", false, studentGrant("s2")),
			req:     CreateEnrollmentRequest{StudentProfileID: "s1", SectionID: "sec"},
			wantErr: rbac.ErrPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.actor, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStudentSelfEnrolls(t *testing.T) {
	repo := newMemRepo()
	repo.addProfile("prof", rbac.KindProfessor)
	repo.addSection("sec", "prof", 10)
	repo.addProfile("s1", rbac.KindStudent)

	svc := newTestService(repo)

	e, err := svc.Create(context.Background(), rbac.NewActor("u1", false, studentGrant("s1")), CreateEnrollmentRequest{
		StudentProfileID: "s1",
		SectionID:        "sec",
		Cost:             decimal.RequireFromString("99.5"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, e.Status)
	assert.Equal(t, "prof", e.ProfessorProfileID)
	assert.Equal(t, "99.50", ToEnrollmentResponse(e).Cost)
	assert.Equal(t, GradePending, e.GradeStatus())
}

type gradingFixture struct {
	svc  *Service
	repo *memRepo
	e    *Enrollment
}

func newGradingFixture(t *testing.T) gradingFixture {
	t.Helper()
	repo := newMemRepo()
	repo.addProfile("P", rbac.KindProfessor)
	repo.addProfile("Q", rbac.KindProfessor)
	repo.addSection("sec", "P", 10)
	repo.addProfile("s1", rbac.KindStudent)

	svc := newTestService(repo)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	return gradingFixture{svc: svc, repo: repo, e: enroll(t, svc, "s1", "sec")}
}

func TestSetGradeBySectionProfessor(t *testing.T) {
	f := newGradingFixture(t)
	actor := rbac.NewActor("uP", false, professorGrant("P"))

	e, err := f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: "15"})
	require.NoError(t, err)

	assert.Equal(t, GradePassed, e.GradeStatus())
	require.NotNil(t, e.GradedByID)
	assert.Equal(t, "P", *e.GradedByID)
	require.NotNil(t, e.GradedAt)

	stored, err := f.repo.Get(context.Background(), f.e.ID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", stored.Grade.Decimal.StringFixed(2))
}

func TestSetGradeByOtherProfessorDenied(t *testing.T) {
	f := newGradingFixture(t)
	actor := rbac.NewActor("uQ", false, professorGrant("Q"))

	_, err := f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: "15"})
	require.ErrorIs(t, err, rbac.ErrPermissionDenied)

	stored, err := f.repo.Get(context.Background(), f.e.ID)
	require.NoError(t, err)
	assert.False(t, stored.Grade.Valid)
}

func TestSetGradeRange(t *testing.T) {
	f := newGradingFixture(t)
	actor := rbac.NewActor("uP", false, professorGrant("P"))

	tests := []struct {
		grade   string
		status  GradeStatus
		wantErr error
	}{
		{"-0.01", "", ErrInvalidGradeRange},
		{"20.01", "", ErrInvalidGradeRange},
		{"abc", "", core.ErrInvalidInput},
		{"12.345", "", core.ErrInvalidInput},
		{"0", GradeFailed, nil},
		{"10.99", GradeFailed, nil},
		{"11", GradePassed, nil},
		{"20", GradePassed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.grade, func(t *testing.T) {
			e, err := f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: tt.grade})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, e.GradeStatus())
		})
	}
}

func TestSetGradeOutOfRangeBeforeAuthorization(t *testing.T) {
	f := newGradingFixture(t)
	outsider := rbac.NewActor("uQ", false, professorGrant("Q"))

	_, err := f.svc.SetGrade(context.Background(), outsider, f.e.ID, SetGradeRequest{Grade: "21"})
	require.ErrorIs(t, err, ErrInvalidGradeRange)
}

func TestSetGradeLastWriteWins(t *testing.T) {
	f := newGradingFixture(t)
	actor := rbac.NewActor("uP", false, professorGrant("P"))
	notes := "recalificado"

	_, err := f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: "9"})
	require.NoError(t, err)
	e, err := f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: "13.5", Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, GradePassed, e.GradeStatus())
	assert.Equal(t, "13.50", *ToEnrollmentResponse(e).Grade)
	assert.Equal(t, notes, *e.GradeNotes)
}

func TestSetGradeStudentAndProfessorUnscoped(t *testing.T) {
	f := newGradingFixture(t)
	actor := rbac.NewActor("uP", false, studentGrant("s9"), professorGrant("P"))

	e, err := f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: "18"})
	require.NoError(t, err)
	assert.Equal(t, "P", *e.GradedByID)
}

func TestSetGradeScopedToStudentProfile(t *testing.T) {
	f := newGradingFixture(t)
	actor := rbac.NewActor("uP", false, studentGrant("s9"), professorGrant("P"))

	_, err := f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: "18", ProfileID: "s9"})
	require.ErrorIs(t, err, rbac.ErrProfileKindMismatch)

	_, err = f.svc.SetGrade(context.Background(), actor, f.e.ID, SetGradeRequest{Grade: "18", ProfileID: "Q"})
	require.ErrorIs(t, err, rbac.ErrScopeMismatch)
}

func TestSetGradeSuperuserWithoutProfile(t *testing.T) {
	f := newGradingFixture(t)

	e, err := f.svc.SetGrade(context.Background(), rbac.NewActor("root", true), f.e.ID, SetGradeRequest{Grade: "4"})
	require.NoError(t, err)
	assert.Nil(t, e.GradedByID)
	assert.Equal(t, GradeFailed, e.GradeStatus())
}

func TestUpdateStatusTransitions(t *testing.T) {
	repo := newMemRepo()
	repo.addProfile("prof", rbac.KindProfessor)
	repo.addSection("sec", "prof", 10)
	repo.addProfile("s1", rbac.KindStudent)

	svc := newTestService(repo)
	e := enroll(t, svc, "s1", "sec")
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, adminActor(), e.ID, StatusCompleted)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, rbac.NewActor("u1", false, studentGrant("s1")), e.ID, StatusPaid)
	require.ErrorIs(t, err, rbac.ErrPermissionDenied)

	for _, next := range []Status{StatusPaid, StatusCompleted} {
		updated, err := svc.UpdateStatus(ctx, adminActor(), e.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err = svc.UpdateStatus(ctx, adminActor(), e.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetAndListVisibility(t *testing.T) {
	repo := newMemRepo()
	repo.addProfile("P", rbac.KindProfessor)
	repo.addProfile("Q", rbac.KindProfessor)
	repo.addSection("secP", "P", 10)
	repo.addSection("secQ", "Q", 10)
	repo.addProfile("s1", rbac.KindStudent)
	repo.addProfile("s2", rbac.KindStudent)

	svc := newTestService(repo)
	e1 := enroll(t, svc, "s1", "secP")
	e2 := enroll(t, svc, "s2", "secQ")
	ctx := context.Background()

	student := rbac.NewActor("u1", false, studentGrant("s1"))
	professor := rbac.NewActor("uP", false, professorGrant("P"))

	_, err := svc.Get(ctx, student, e1.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, student, e2.ID)
	require.ErrorIs(t, err, rbac.ErrPermissionDenied)
	_, err = svc.Get(ctx, professor, e2.ID)
	require.ErrorIs(t, err, rbac.ErrPermissionDenied)
	_, err = svc.Get(ctx, student, uuid.NewString())
	require.ErrorIs(t, err, core.ErrNotFound)

	mine, total, err := svc.List(ctx, student, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, e1.ID, mine[0].ID)

	_, total, err = svc.List(ctx, adminActor(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	nobody := rbac.NewActor("u9", false)
	none, total, err := svc.List(ctx, nobody, ListParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}
