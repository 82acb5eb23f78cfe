// AngelaMos | 2026
// repository_test.go

package profile

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
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

var refCols = []string{"id", "user_id", "role_id", "role_kind", "is_active", "role_active"}

func TestChangeRoleLocksProfileRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM profiles p\s+JOIN roles r .+ FOR UPDATE OF p`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(refCols).AddRow("p1", "u1", "r1", "student", true, true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx Repository) error {
		ref, err := tx.LockForUpdate(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, rbac.KindStudent, ref.Kind)
		assert.True(t, ref.Usable())

		related, err := tx.HasRelations(context.Background(), "p1")
		require.NoError(t, err)
		if related {
			return rbac.ErrProfileKindMismatch
		}
		return nil
	})
	require.ErrorIs(t, err, rbac.ErrProfileKindMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRefUsesSharedLock(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FOR SHARE OF p`).
		WithArgs("p9").
		WillReturnRows(sqlmock.NewRows(refCols).AddRow("p9", "u1", "r2", "professor", true, false))

	ref, err := LockRef(context.Background(), db, "p9")
	require.NoError(t, err)
	assert.Equal(t, rbac.KindProfessor, ref.Kind)
	assert.False(t, ref.Usable())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsDuplicateDNI(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery(`INSERT INTO profiles`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "profiles_dni_key"})

	err := repo.Create(context.Background(), &Profile{ID: "p1", UserID: "u1", RoleID: "r1", DNI: "X"})
	require.ErrorIs(t, err, ErrDuplicateDNI)
}
