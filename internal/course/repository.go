// AngelaMos | 2026
// repository.go

package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/profile"
)

type Repository interface {
	WithinTx(ctx context.Context, fn func(Repository) error) error

	CreateCourse(ctx context.Context, c *Course) error
	GetCourse(ctx context.Context, id string) (*Course, error)
	ListCourses(ctx context.Context) ([]Course, error)

	// LockProfile must run inside WithinTx.
	LockProfile(ctx context.Context, id string) (*profile.Ref, error)
	CreateSection(ctx context.Context, s *Section) error
	GetSection(ctx context.Context, id string) (*Section, error)
	LockSection(ctx context.Context, id string) (*Section, error)
	UpdateCapacity(ctx context.Context, id string, maxCapacity int) error
	ListSections(ctx context.Context, params ListSectionsParams) ([]Section, error)
}

const (
	sectionColumns = `s.id, s.course_id, s.code, s.period, s.professor_profile_id,
		       s.max_capacity, s.created_at, s.updated_at`

	enrolledCount = `(SELECT COUNT(*) FROM enrollments e
		        WHERE e.section_id = s.id AND e.status <> 'CANCELLED') AS enrolled_count`

	seatCount = `SELECT COUNT(*) FROM enrollments
		WHERE section_id = $1 AND status <> 'CANCELLED'`
)

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

func (r *repository) CreateCourse(ctx context.Context, c *Course) error {
	query := `
		INSERT INTO courses (id, code, name, credits)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query, c.ID, c.Code, c.Name, c.Credits).
		Scan(&c.CreatedAt)
	if err != nil {
		err = core.MapStoreError(err)
		if errors.Is(err, core.ErrDuplicateKey) {
			return fmt.Errorf("create course: %w", ErrDuplicateCourse)
		}
		return fmt.Errorf("create course: %w", err)
	}

	return nil
}

func (r *repository) GetCourse(ctx context.Context, id string) (*Course, error) {
	query := `SELECT id, code, name, credits, created_at FROM courses WHERE id = $1`

	var c Course
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get course: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}

	return &c, nil
}

func (r *repository) ListCourses(ctx context.Context) ([]Course, error) {
	query := `SELECT id, code, name, credits, created_at FROM courses ORDER BY code`

	courses := []Course{}
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	return courses, nil
}

func (r *repository) LockProfile(ctx context.Context, id string) (*profile.Ref, error) {
	return profile.LockRef(ctx, r.db, id)
}

func (r *repository) CreateSection(ctx context.Context, s *Section) error {
	query := `
		INSERT INTO sections (id, course_id, code, period, professor_profile_id, max_capacity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		s.ID,
		s.CourseID,
		s.Code,
		s.Period,
		s.ProfessorProfileID,
		s.MaxCapacity,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		err = core.MapStoreError(err)
		switch {
		case errors.Is(err, core.ErrDuplicateKey):
			return fmt.Errorf("create section: %w", ErrDuplicateSection)
		case errors.Is(err, core.ErrForeignKey):
			return fmt.Errorf("create section: course: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create section: %w", err)
	}

	return nil
}

func (r *repository) GetSection(ctx context.Context, id string) (*Section, error) {
	query := `SELECT ` + sectionColumns + `, ` + enrolledCount + `
		FROM sections s
		WHERE s.id = $1`

	return getSection(ctx, r.db, "get section", query, id)
}

func (r *repository) LockSection(ctx context.Context, id string) (*Section, error) {
	return LockSection(ctx, r.db, id)
}

// LockSection takes the section row lock that serialises enrollment into
// it, then counts occupied seats in a separate statement. Under READ
// COMMITTED the count needs its own snapshot, taken after the lock is
// granted, to see rows inserted by the previous holder. db must be a
// transaction.
func LockSection(ctx context.Context, db core.DBTX, id string) (*Section, error) {
	query := `SELECT ` + sectionColumns + `
		FROM sections s
		WHERE s.id = $1
		FOR UPDATE OF s`

	s, err := getSection(ctx, db, "lock section", query, id)
	if err != nil {
		return nil, err
	}

	if err := db.GetContext(ctx, &s.EnrolledCount, seatCount, id); err != nil {
		return nil, fmt.Errorf("count seats: %w", err)
	}

	return s, nil
}

func getSection(
	ctx context.Context,
	db core.DBTX,
	op, query, id string,
) (*Section, error) {
	var s Section
	err := db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &s, nil
}

func (r *repository) UpdateCapacity(ctx context.Context, id string, maxCapacity int) error {
	query := `UPDATE sections SET max_capacity = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, maxCapacity)
	if err != nil {
		return fmt.Errorf("update capacity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update capacity: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update capacity: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListSections(
	ctx context.Context,
	params ListSectionsParams,
) ([]Section, error) {
	where := squirrel.Eq{}
	if params.CourseID != "" {
		where["s.course_id"] = params.CourseID
	}
	if params.Period != "" {
		where["s.period"] = params.Period
	}
	if params.ProfessorProfileID != "" {
		where["s.professor_profile_id"] = params.ProfessorProfileID
	}

	query, args, err := r.builder.
		Select(sectionColumns, enrolledCount).
		From("sections s").
		Where(where).
		OrderBy("s.period DESC", "s.code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sections sql: %w", err)
	}

	sections := []Section{}
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	return sections, nil
}
