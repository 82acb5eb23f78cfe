// AngelaMos | 2026
// service.go

package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/academic-core/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) LoadActor(ctx context.Context, userID string) (*Actor, error) {
	return s.repo.LoadActor(ctx, userID)
}

// Bootstrap mirrors the permission catalog into storage and creates any
// missing default role with its default grants. Existing roles keep
// whatever grants an administrator has given them.
func (s *Service) Bootstrap(ctx context.Context) error {
	for _, p := range Catalog() {
		if err := s.repo.UpsertPermission(ctx, p); err != nil {
			return fmt.Errorf("bootstrap permission %s: %w", p.Code, err)
		}
	}

	created := 0
	for _, tmpl := range DefaultRoles {
		_, err := s.repo.GetRoleByName(ctx, tmpl.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("bootstrap role %s: %w", tmpl.Name, err)
		}

		role := &Role{
			ID:          uuid.New().String(),
			Name:        tmpl.Name,
			Description: tmpl.Description,
			Kind:        tmpl.Kind,
			IsActive:    true,
		}
		if err := s.repo.CreateRole(ctx, role); err != nil {
			return fmt.Errorf("bootstrap role %s: %w", tmpl.Name, err)
		}
		for _, code := range tmpl.Permissions {
			if err := s.repo.AddRolePermission(ctx, role.ID, code); err != nil {
				return fmt.Errorf("bootstrap role %s: %w", tmpl.Name, err)
			}
		}
		created++
	}

	slog.Info("rbac bootstrap complete",
		"permissions", len(catalog),
		"roles_created", created,
	)

	return nil
}

func (s *Service) Permissions() []Permission {
	return Catalog()
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	for i := range roles {
		codes, err := s.repo.RolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = codes
	}

	return roles, nil
}

func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	codes, err := s.repo.RolePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Permissions = codes

	return role, nil
}

func (s *Service) CreateRole(
	ctx context.Context,
	name, description string,
	kind RoleKind,
) (*Role, error) {
	if _, err := ParseRoleKind(string(kind)); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("role name is required: %w", core.ErrInvalidInput)
	}

	role := &Role{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Kind:        kind,
		IsActive:    true,
		Permissions: []string{},
	}

	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	return role, nil
}

// GrantPermission attaches a catalog permission to a role. Codes outside the
// catalog are refused.
func (s *Service) GrantPermission(ctx context.Context, roleID, code string) error {
	if !IsKnownPermission(code) {
		return ErrUnknownPermission
	}

	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}

	return s.repo.AddRolePermission(ctx, roleID, code)
}

func (s *Service) RevokePermission(ctx context.Context, roleID, code string) error {
	if !IsKnownPermission(code) {
		return ErrUnknownPermission
	}

	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}

	return s.repo.RemoveRolePermission(ctx, roleID, code)
}

func (s *Service) SetRoleActive(ctx context.Context, roleID string, active bool) error {
	return s.repo.SetRoleActive(ctx, roleID, active)
}

func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	n, err := s.repo.CountProfilesWithRole(ctx, roleID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrRoleInUse
	}

	return s.repo.DeleteRole(ctx, roleID)
}
