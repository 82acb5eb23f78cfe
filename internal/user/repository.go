// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/carterperez-dev/academic-core/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	SetTOTPSecret(ctx context.Context, id, secret string) error
	EnableTOTP(ctx context.Context, id string, codeHashes []string) error
	DisableTOTP(ctx context.Context, id string) error
	ReplaceBackupCodes(ctx context.Context, id string, codeHashes []string) error
	ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error)
	CountBackupCodes(ctx context.Context, id string) (int, error)
}

const userColumns = `id, email, password_hash, first_name, last_name,
		       is_superuser, totp_secret, totp_enabled, backup_codes,
		       token_version, last_login_at, created_at, updated_at, deleted_at`

type repository struct {
	db      core.DBTX
	builder squirrel.StatementBuilderType
}

func NewRepository(db core.DBTX) Repository {
	return &repository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at, token_version`

	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.IsSuperuser,
	).Scan(&user.CreatedAt, &user.UpdatedAt, &user.TokenVersion)
	if err != nil {
		return fmt.Errorf("create user: %w", core.MapStoreError(err))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.FirstName,
		user.LastName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "increment token version", query, id)
}

func (r *repository) TouchLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "touch last login", query, id)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete user", query, id)
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	where := squirrel.And{squirrel.Eq{"deleted_at": nil}}

	if params.Search != "" {
		pattern := "%" + escapeLike(params.Search) + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
		})
	}

	if params.Superusers != nil {
		where = append(where, squirrel.Eq{"is_superuser": *params.Superusers})
	}

	if params.TOTPEnabled != nil {
		where = append(where, squirrel.Eq{"totp_enabled": *params.TOTPEnabled})
	}

	countQuery, countArgs, err := r.builder.
		Select("COUNT(*)").
		From("users").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users sql: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query, args, err := r.builder.
		Select(userColumns).
		From("users").
		Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(params.PageSize)).
		Offset(uint64(params.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users sql: %w", err)
	}

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

// SetTOTPSecret stores a provisional secret. It is refused once 2FA is on,
// so a live secret can never be swapped without disabling first.
func (r *repository) SetTOTPSecret(ctx context.Context, id, secret string) error {
	query := `
		UPDATE users
		SET totp_secret = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND totp_enabled = FALSE`

	return r.execOne(ctx, "set totp secret", query, id, secret)
}

func (r *repository) EnableTOTP(
	ctx context.Context,
	id string,
	codeHashes []string,
) error {
	query := `
		UPDATE users
		SET totp_enabled = TRUE, backup_codes = $2, updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND totp_enabled = FALSE
		  AND totp_secret IS NOT NULL`

	return r.execOne(ctx, "enable totp", query, id, pq.StringArray(codeHashes))
}

func (r *repository) DisableTOTP(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET totp_enabled = FALSE, totp_secret = NULL, backup_codes = '{}', updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "disable totp", query, id)
}

func (r *repository) ReplaceBackupCodes(
	ctx context.Context,
	id string,
	codeHashes []string,
) error {
	query := `
		UPDATE users
		SET backup_codes = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND totp_enabled = TRUE`

	return r.execOne(ctx, "replace backup codes", query, id, pq.StringArray(codeHashes))
}

// ConsumeBackupCode removes codeHash from the vault in one conditional
// statement. Two callers racing on the same code see exactly one true.
func (r *repository) ConsumeBackupCode(
	ctx context.Context,
	id, codeHash string,
) (bool, error) {
	query := `
		UPDATE users
		SET backup_codes = array_remove(backup_codes, $2), updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND totp_enabled = TRUE
		  AND $2 = ANY(backup_codes)`

	result, err := r.db.ExecContext(ctx, query, id, codeHash)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) CountBackupCodes(ctx context.Context, id string) (int, error) {
	query := `
		SELECT COALESCE(array_length(backup_codes, 1), 0)
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	var n int
	err := r.db.GetContext(ctx, &n, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count backup codes: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("count backup codes: %w", err)
	}

	return n, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
