// AngelaMos | 2026
// repository.go

package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/course"
	"github.com/carterperez-dev/academic-core/internal/profile"
)

type Repository interface {
	WithinTx(ctx context.Context, fn func(Repository) error) error

	// The Lock methods must run inside WithinTx.
	LockSection(ctx context.Context, sectionID string) (*course.Section, error)
	LockProfile(ctx context.Context, profileID string) (*profile.Ref, error)
	GetForUpdate(ctx context.Context, id string) (*Enrollment, error)

	Exists(ctx context.Context, studentProfileID, sectionID string) (bool, error)
	Insert(ctx context.Context, e *Enrollment) error
	Get(ctx context.Context, id string) (*Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateGrade(ctx context.Context, e *Enrollment) error
	List(ctx context.Context, vis Visibility, params ListParams) ([]Enrollment, int, error)
}

const enrollmentColumns = `e.id, e.student_profile_id, e.section_id,
		       s.professor_profile_id, e.status, e.cost, e.grade, e.grade_notes,
		       e.graded_by_id, e.graded_at, e.created_at, e.updated_at`

type repository struct {
	db       core.DBTX
	beginner core.TxBeginner
	builder  squirrel.StatementBuilderType
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{
		db:       db,
		beginner: db,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *repository) WithinTx(
	ctx context.Context,
	fn func(Repository) error,
) error {
	if r.beginner == nil {
		return fn(r)
	}
	return core.InTx(ctx, r.beginner, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx, builder: r.builder})
	})
}

func (r *repository) LockSection(
	ctx context.Context,
	sectionID string,
) (*course.Section, error) {
	return course.LockSection(ctx, r.db, sectionID)
}

func (r *repository) LockProfile(
	ctx context.Context,
	profileID string,
) (*profile.Ref, error) {
	return profile.LockRef(ctx, r.db, profileID)
}

func (r *repository) GetForUpdate(ctx context.Context, id string) (*Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments e
		JOIN sections s ON s.id = e.section_id
		WHERE e.id = $1
		FOR UPDATE OF e`

	return r.getOne(ctx, "lock enrollment", query, id)
}

func (r *repository) Get(ctx context.Context, id string) (*Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments e
		JOIN sections s ON s.id = e.section_id
		WHERE e.id = $1`

	return r.getOne(ctx, "get enrollment", query, id)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query, id string,
) (*Enrollment, error) {
	var e Enrollment
	err := r.db.GetContext(ctx, &e, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &e, nil
}

func (r *repository) Exists(
	ctx context.Context,
	studentProfileID, sectionID string,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE student_profile_id = $1 AND section_id = $2
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentProfileID, sectionID); err != nil {
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}

	return exists, nil
}

// Insert relies on enrollments_student_section_key as the last line of
// defence against a duplicate pair.
func (r *repository) Insert(ctx context.Context, e *Enrollment) error {
	query := `
		INSERT INTO enrollments (id, student_profile_id, section_id, status, cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		e.ID,
		e.StudentProfileID,
		e.SectionID,
		e.Status,
		e.Cost,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		err = core.MapStoreError(err)
		if errors.Is(err, core.ErrDuplicateKey) {
			return fmt.Errorf("insert enrollment: %w", ErrDuplicateEnrollment)
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	query := `UPDATE enrollments SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}

	return expectOneRow(result, "update enrollment status")
}

func (r *repository) UpdateGrade(ctx context.Context, e *Enrollment) error {
	query := `
		UPDATE enrollments
		SET grade = $2, grade_notes = $3, graded_by_id = $4, graded_at = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Grade,
		e.GradeNotes,
		e.GradedByID,
		e.GradedAt,
	)
	if err != nil {
		return fmt.Errorf("update grade: %w", core.MapStoreError(err))
	}

	return expectOneRow(result, "update grade")
}

func (r *repository) List(
	ctx context.Context,
	vis Visibility,
	params ListParams,
) ([]Enrollment, int, error) {
	params.Normalize()

	where := squirrel.And{}

	if !vis.All {
		visible := squirrel.Or{}
		if len(vis.StudentProfileIDs) > 0 {
			visible = append(visible, squirrel.Eq{"e.student_profile_id": vis.StudentProfileIDs})
		}
		if len(vis.ProfessorProfileIDs) > 0 {
			visible = append(visible, squirrel.Eq{"s.professor_profile_id": vis.ProfessorProfileIDs})
		}
		if len(visible) == 0 {
			return []Enrollment{}, 0, nil
		}
		where = append(where, visible)
	}

	if params.SectionID != "" {
		where = append(where, squirrel.Eq{"e.section_id": params.SectionID})
	}
	if params.StudentProfileID != "" {
		where = append(where, squirrel.Eq{"e.student_profile_id": params.StudentProfileID})
	}
	if params.Status != "" {
		where = append(where, squirrel.Eq{"e.status": params.Status})
	}

	countQuery, countArgs, err := r.builder.
		Select("COUNT(*)").
		From("enrollments e").
		Join("sections s ON s.id = e.section_id").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count enrollments sql: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	query, args, err := r.builder.
		Select(enrollmentColumns).
		From("enrollments e").
		Join("sections s ON s.id = e.section_id").
		Where(where).
		OrderBy("e.created_at DESC").
		Limit(uint64(params.PageSize)).
		Offset(uint64(params.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list enrollments sql: %w", err)
	}

	enrollments := []Enrollment{}
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	return enrollments, total, nil
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
