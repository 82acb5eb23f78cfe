// AngelaMos | 2026
// repository.go

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/academic-core/internal/core"
)

type Repository interface {
	// WithinTx runs fn against a repository bound to a single transaction.
	WithinTx(ctx context.Context, fn func(Repository) error) error

	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	ListByUser(ctx context.Context, userID string) ([]Profile, error)
	LockForUpdate(ctx context.Context, id string) (*Ref, error)
	HasRelations(ctx context.Context, id string) (bool, error)
	UpdateRole(ctx context.Context, id, roleID string) error
	SetActive(ctx context.Context, id string, active bool) error
}

const profileColumns = `p.id, p.user_id, p.role_id, r.name AS role_name,
		       r.kind AS role_kind, p.dni, p.program_id, p.specialty,
		       p.is_active, p.created_at, p.updated_at`

const refQuery = `
	SELECT p.id, p.user_id, p.role_id, r.kind AS role_kind,
	       p.is_active, r.is_active AS role_active
	FROM profiles p
	JOIN roles r ON r.id = p.role_id
	WHERE p.id = $1`

type repository struct {
	db       core.DBTX
	beginner core.TxBeginner
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db, beginner: db}
}

func (r *repository) WithinTx(
	ctx context.Context,
	fn func(Repository) error,
) error {
	if r.beginner == nil {
		return fn(r)
	}
	return core.InTx(ctx, r.beginner, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) Create(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (id, user_id, role_id, dni, program_id, specialty, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING is_active, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID,
		p.UserID,
		p.RoleID,
		p.DNI,
		p.ProgramID,
		p.Specialty,
	).Scan(&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		err = core.MapStoreError(err)
		if errors.Is(err, core.ErrDuplicateKey) {
			return fmt.Errorf("create profile: %w", ErrDuplicateDNI)
		}
		return fmt.Errorf("create profile: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles p
		JOIN roles r ON r.id = p.role_id
		WHERE p.id = $1`

	var p Profile
	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles p
		JOIN roles r ON r.id = p.role_id
		WHERE p.user_id = $1
		ORDER BY p.created_at`

	profiles := []Profile{}
	if err := r.db.SelectContext(ctx, &profiles, query, userID); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	return profiles, nil
}

func (r *repository) LockForUpdate(ctx context.Context, id string) (*Ref, error) {
	return getRef(ctx, r.db, refQuery+` FOR UPDATE OF p`, id)
}

// HasRelations reports whether any section or enrollment points at the
// profile. Such a profile cannot change role kind.
func (r *repository) HasRelations(ctx context.Context, id string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM sections WHERE professor_profile_id = $1)
		    OR EXISTS (SELECT 1 FROM enrollments
		               WHERE student_profile_id = $1 OR graded_by_id = $1)`

	var related bool
	if err := r.db.GetContext(ctx, &related, query, id); err != nil {
		return false, fmt.Errorf("check profile relations: %w", err)
	}

	return related, nil
}

func (r *repository) UpdateRole(ctx context.Context, id, roleID string) error {
	query := `UPDATE profiles SET role_id = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, roleID)
	if err != nil {
		return fmt.Errorf("update profile role: %w", core.MapStoreError(err))
	}

	return expectOneRow(result, "update profile role")
}

func (r *repository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE profiles SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set profile active: %w", err)
	}

	return expectOneRow(result, "set profile active")
}

// LockRef reads a profile with a shared row lock, so a concurrent role
// change waits until the caller's transaction has bound the profile to a
// section or enrollment. db must be a transaction.
func LockRef(ctx context.Context, db core.DBTX, id string) (*Ref, error) {
	return getRef(ctx, db, refQuery+` FOR SHARE OF p`, id)
}

func getRef(ctx context.Context, db core.DBTX, query, id string) (*Ref, error) {
	var ref Ref
	err := db.GetContext(ctx, &ref, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &ref, nil
}

func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
