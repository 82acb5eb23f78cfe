// AngelaMos | 2026
// service.go

package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type RoleLookup interface {
	GetRole(ctx context.Context, id string) (*rbac.Role, error)
}

type Service struct {
	repo  Repository
	roles RoleLookup
}

func NewService(repo Repository, roles RoleLookup) *Service {
	return &Service{repo: repo, roles: roles}
}

func (s *Service) Create(
	ctx context.Context,
	actor *rbac.Actor,
	req CreateProfileRequest,
) (*Profile, error) {
	if !actor.HasPermission(rbac.PermManageUsers) {
		return nil, rbac.ErrPermissionDenied
	}

	role, err := s.activeRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		RoleID:    role.ID,
		RoleName:  role.Name,
		Kind:      role.Kind,
		DNI:       strings.ToUpper(strings.TrimSpace(req.DNI)),
		ProgramID: req.ProgramID,
		Specialty: req.Specialty,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, core.ErrForeignKey) {
			return nil, fmt.Errorf("create profile: user or program: %w", core.ErrNotFound)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "profile created",
		"profile_id", p.ID,
		"user_id", p.UserID,
		"role", role.Name,
		"by", actor.UserID,
	)

	return p, nil
}

// ChangeRole moves a profile to another role. Once the profile is bound to
// a section or an enrollment its kind is fixed, so only a role of the same
// kind is accepted.
func (s *Service) ChangeRole(
	ctx context.Context,
	actor *rbac.Actor,
	profileID, roleID string,
) (*Profile, error) {
	if !actor.HasPermission(rbac.PermManageUsers) {
		return nil, rbac.ErrPermissionDenied
	}

	role, err := s.activeRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		current, err := tx.LockForUpdate(ctx, profileID)
		if err != nil {
			return err
		}

		if current.Kind != role.Kind {
			related, err := tx.HasRelations(ctx, profileID)
			if err != nil {
				return err
			}
			if related {
				return fmt.Errorf(
					"change role from %s to %s: %w",
					current.Kind, role.Kind, rbac.ErrProfileKindMismatch,
				)
			}
		}

		return tx.UpdateRole(ctx, profileID, role.ID)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "profile role changed",
		"profile_id", profileID,
		"role", role.Name,
		"by", actor.UserID,
	)

	return s.repo.GetByID(ctx, profileID)
}

func (s *Service) Deactivate(ctx context.Context, actor *rbac.Actor, profileID string) error {
	return s.setActive(ctx, actor, profileID, false)
}

func (s *Service) Reactivate(ctx context.Context, actor *rbac.Actor, profileID string) error {
	return s.setActive(ctx, actor, profileID, true)
}

func (s *Service) setActive(
	ctx context.Context,
	actor *rbac.Actor,
	profileID string,
	active bool,
) error {
	if !actor.HasPermission(rbac.PermManageUsers) {
		return rbac.ErrPermissionDenied
	}

	if err := s.repo.SetActive(ctx, profileID, active); err != nil {
		return err
	}

	slog.InfoContext(ctx, "profile activation changed",
		"profile_id", profileID,
		"active", active,
		"by", actor.UserID,
	)

	return nil
}

// Get returns a profile to its owner or to a user manager.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, profileID string) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	if p.UserID != actor.UserID && !actor.HasPermission(rbac.PermManageUsers) {
		return nil, rbac.ErrPermissionDenied
	}

	return p, nil
}

func (s *Service) ListMine(ctx context.Context, actor *rbac.Actor) ([]Profile, error) {
	return s.repo.ListByUser(ctx, actor.UserID)
}

func (s *Service) ListForUser(
	ctx context.Context,
	actor *rbac.Actor,
	userID string,
) ([]Profile, error) {
	if userID != actor.UserID && !actor.HasPermission(rbac.PermManageUsers) {
		return nil, rbac.ErrPermissionDenied
	}
	return s.repo.ListByUser(ctx, userID)
}

// Permissions is the union over active profiles, or a single profile's set
// when profileID is given.
func (s *Service) Permissions(actor *rbac.Actor, profileID string) ([]string, error) {
	if profileID == "" {
		return actor.PermissionCodes(), nil
	}
	return actor.PermissionCodesAs(profileID)
}

func (s *Service) activeRole(ctx context.Context, roleID string) (*rbac.Role, error) {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	if !role.IsActive {
		return nil, ErrRoleInactive
	}
	return role, nil
}
