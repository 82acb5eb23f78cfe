// AngelaMos | 2026
// repository_test.go

package course

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var sectionCols = []string{
	"id", "course_id", "code", "period", "professor_profile_id",
	"max_capacity", "created_at", "updated_at", "enrolled_count",
}

var lockedSectionCols = sectionCols[:len(sectionCols)-1]

// The seat count must be its own statement issued after the row lock; a
// subquery in the locking SELECT would read a snapshot taken before the wait.
func TestLockSectionCountsAfterRowLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT [^()]+ FROM sections s WHERE s.id = \$1 FOR UPDATE OF s$`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(lockedSectionCols).
			AddRow("s1", "c1", "A", "2026-1", "p1", 3, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE section_id = \$1 AND status <> 'CANCELLED'`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx Repository) error {
		s, err := tx.LockSection(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, 1, s.AvailableSeats())
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSectionMapsUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery(`INSERT INTO sections`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "sections_course_code_period_key"})

	err := repo.CreateSection(context.Background(), &Section{ID: "s1", CourseID: "c1", Code: "A", Period: "2026-1"})
	require.ErrorIs(t, err, ErrDuplicateSection)
}

func TestListSectionsFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery(`FROM sections s WHERE .*s.course_id = \$1.*s.period = \$2`).
		WithArgs("c1", "2026-1").
		WillReturnRows(sqlmock.NewRows(sectionCols))

	sections, err := repo.ListSections(context.Background(), ListSectionsParams{
		CourseID: "c1",
		Period:   "2026-1",
	})
	require.NoError(t, err)
	assert.Empty(t, sections)
	require.NoError(t, mock.ExpectationsWereMet())
}
