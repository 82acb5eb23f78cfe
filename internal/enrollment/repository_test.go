// AngelaMos | 2026
// repository_test.go

package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/academic-core/internal/rbac"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var (
	sectionCols = []string{
		"id", "course_id", "code", "period", "professor_profile_id",
		"max_capacity", "created_at", "updated_at", "enrolled_count",
	}
	lockedSectionCols = sectionCols[:len(sectionCols)-1]
	refCols           = []string{
		"id", "user_id", "role_id", "role_kind", "is_active", "role_active",
	}
	enrollmentCols = []string{
		"id", "student_profile_id", "section_id", "professor_profile_id",
		"status", "cost", "grade", "grade_notes", "graded_by_id", "graded_at",
		"created_at", "updated_at",
	}
)

func TestCreateRunsUnderSectionLock(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestService(NewRepository(db))
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT [^()]+ FROM sections s WHERE s.id = \$1 FOR UPDATE OF s$`).
		WithArgs("sec").
		WillReturnRows(sqlmock.NewRows(lockedSectionCols).
			AddRow("sec", "c1", "A", "2026-1", "P", 30, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE section_id = \$1`).
		WithArgs("sec").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`FROM profiles p .+ FOR SHARE OF p`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(refCols).
			AddRow("s1", "u1", "r1", string(rbac.KindStudent), true, true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("s1", "sec").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO enrollments`).
		WithArgs(sqlmock.AnyArg(), "s1", "sec", StatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	e, err := svc.Create(context.Background(), adminActor(), CreateEnrollmentRequest{
		StudentProfileID: "s1",
		SectionID:        "sec",
		Cost:             decimal.RequireFromString("250"),
	})
	require.NoError(t, err)
	assert.Equal(t, "P", e.ProfessorProfileID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFullSectionRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestService(NewRepository(db))
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF s`).
		WithArgs("sec").
		WillReturnRows(sqlmock.NewRows(lockedSectionCols).
			AddRow("sec", "c1", "A", "2026-1", "P", 1, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments`).
		WithArgs("sec").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FOR SHARE OF p`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(refCols).
			AddRow("s1", "u1", "r1", string(rbac.KindStudent), true, true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), adminActor(), CreateEnrollmentRequest{
		StudentProfileID: "s1",
		SectionID:        "sec",
	})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMapsUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery(`INSERT INTO enrollments`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "enrollments_student_section_key"})

	err := repo.Insert(context.Background(), &Enrollment{
		ID:               "e1",
		StudentProfileID: "s1",
		SectionID:        "sec",
		Status:           StatusPending,
	})
	require.ErrorIs(t, err, ErrDuplicateEnrollment)
}

func TestGetForUpdateLocksEnrollmentRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`JOIN sections s ON s.id = e.section_id WHERE e.id = \$1 FOR UPDATE OF e`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(enrollmentCols).
			AddRow("e1", "s1", "sec", "P", "PAID", "250.00", "15.50", nil, "P", now, now, now))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx Repository) error {
		e, err := tx.GetForUpdate(context.Background(), "e1")
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, e.Status)
		assert.Equal(t, GradePassed, e.GradeStatus())
		assert.Equal(t, "P", e.ProfessorProfileID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesVisibility(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	vis := Visibility{StudentProfileIDs: []string{"s1"}, ProfessorProfileIDs: []string{"P"}}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments e JOIN sections s ON s.id = e.section_id WHERE \(\(e.student_profile_id IN \(\$1\) OR s.professor_profile_id IN \(\$2\)\) AND e.status = \$3\)`).
		WithArgs("s1", "P", StatusPaid).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY e.created_at DESC LIMIT 20 OFFSET 0`).
		WithArgs("s1", "P", StatusPaid).
		WillReturnRows(sqlmock.NewRows(enrollmentCols))

	enrollments, total, err := repo.List(context.Background(), vis, ListParams{Status: StatusPaid})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, enrollments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListWithoutVisibilitySkipsQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	enrollments, total, err := repo.List(context.Background(), Visibility{}, ListParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, enrollments)
	require.NoError(t, mock.ExpectationsWereMet())
}
