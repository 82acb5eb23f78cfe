// AngelaMos | 2026
// repository.go

package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/academic-core/internal/core"
)

type Repository interface {
	LoadActor(ctx context.Context, userID string) (*Actor, error)

	UpsertPermission(ctx context.Context, p Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, role *Role) error
	SetRoleActive(ctx context.Context, id string, active bool) error
	DeleteRole(ctx context.Context, id string) error
	CountProfilesWithRole(ctx context.Context, roleID string) (int, error)

	RolePermissions(ctx context.Context, roleID string) ([]string, error)
	AddRolePermission(ctx context.Context, roleID, code string) error
	RemoveRolePermission(ctx context.Context, roleID, code string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// LoadActor resolves the user, all of their profiles, each profile's role
// and that role's permissions in a single round trip.
func (r *repository) LoadActor(
	ctx context.Context,
	userID string,
) (*Actor, error) {
	query := `
		SELECT
			u.id AS user_id,
			u.is_superuser,
			p.id AS profile_id,
			p.is_active AS profile_active,
			ro.id AS role_id,
			ro.name AS role_name,
			ro.kind AS role_kind,
			ro.is_active AS role_active,
			rp.permission_code
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		LEFT JOIN roles ro ON ro.id = p.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = ro.id
		WHERE u.id = $1 AND u.deleted_at IS NULL
		ORDER BY p.created_at, p.id`

	var rows []actorRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}

	actor := buildActor(rows)
	if actor == nil {
		return nil, fmt.Errorf("load actor: %w", core.ErrNotFound)
	}

	return actor, nil
}

func (r *repository) UpsertPermission(ctx context.Context, p Permission) error {
	query := `
		INSERT INTO permissions (code, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description`

	if _, err := r.db.ExecContext(ctx, query, p.Code, p.Name, p.Description); err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}

	return nil
}

func (r *repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	query := `SELECT code, name, description FROM permissions ORDER BY code`

	var perms []Permission
	if err := r.db.SelectContext(ctx, &perms, query); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}

	return perms, nil
}

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, name, description, kind, is_active, created_at, updated_at
		FROM roles
		ORDER BY name`

	var roles []Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	return roles, nil
}

func (r *repository) GetRole(ctx context.Context, id string) (*Role, error) {
	query := `
		SELECT id, name, description, kind, is_active, created_at, updated_at
		FROM roles
		WHERE id = $1`

	var role Role
	err := r.db.GetContext(ctx, &role, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get role: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}

	return &role, nil
}

func (r *repository) GetRoleByName(
	ctx context.Context,
	name string,
) (*Role, error) {
	query := `
		SELECT id, name, description, kind, is_active, created_at, updated_at
		FROM roles
		WHERE name = $1`

	var role Role
	err := r.db.GetContext(ctx, &role, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get role by name: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role by name: %w", err)
	}

	return &role, nil
}

func (r *repository) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (id, name, description, kind, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		role.ID,
		role.Name,
		role.Description,
		role.Kind,
		role.IsActive,
	).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create role: %w", core.MapStoreError(err))
	}

	return nil
}

func (r *repository) SetRoleActive(
	ctx context.Context,
	id string,
	active bool,
) error {
	query := `UPDATE roles SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set role active: %w", err)
	}

	return expectOneRow(result, "set role active")
}

func (r *repository) DeleteRole(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		err = core.MapStoreError(err)
		if errors.Is(err, core.ErrForeignKey) {
			return fmt.Errorf("delete role: %w", ErrRoleInUse)
		}
		return fmt.Errorf("delete role: %w", err)
	}

	return expectOneRow(result, "delete role")
}

func (r *repository) CountProfilesWithRole(
	ctx context.Context,
	roleID string,
) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM profiles WHERE role_id = $1`, roleID)
	if err != nil {
		return 0, fmt.Errorf("count profiles with role: %w", err)
	}
	return n, nil
}

func (r *repository) RolePermissions(
	ctx context.Context,
	roleID string,
) ([]string, error) {
	query := `
		SELECT permission_code
		FROM role_permissions
		WHERE role_id = $1
		ORDER BY permission_code`

	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, roleID); err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}

	return codes, nil
}

func (r *repository) AddRolePermission(
	ctx context.Context,
	roleID, code string,
) error {
	query := `
		INSERT INTO role_permissions (role_id, permission_code)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, roleID, code); err != nil {
		err = core.MapStoreError(err)
		if errors.Is(err, core.ErrForeignKey) {
			return fmt.Errorf("add role permission: %w", core.ErrNotFound)
		}
		return fmt.Errorf("add role permission: %w", err)
	}

	return nil
}

func (r *repository) RemoveRolePermission(
	ctx context.Context,
	roleID, code string,
) error {
	query := `DELETE FROM role_permissions WHERE role_id = $1 AND permission_code = $2`

	if _, err := r.db.ExecContext(ctx, query, roleID, code); err != nil {
		return fmt.Errorf("remove role permission: %w", err)
	}

	return nil
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
