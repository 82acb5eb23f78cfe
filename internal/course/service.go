// AngelaMos | 2026
// service.go

package course

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateCourse(
	ctx context.Context,
	actor *rbac.Actor,
	req CreateCourseRequest,
) (*Course, error) {
	if !actor.HasPermission(rbac.PermManageCourses) {
		return nil, rbac.ErrPermissionDenied
	}

	c := &Course{
		ID:      uuid.New().String(),
		Code:    strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:    strings.TrimSpace(req.Name),
		Credits: req.Credits,
	}

	if err := s.repo.CreateCourse(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) GetCourse(ctx context.Context, id string) (*Course, error) {
	return s.repo.GetCourse(ctx, id)
}

func (s *Service) ListCourses(ctx context.Context) ([]Course, error) {
	return s.repo.ListCourses(ctx)
}

// CreateSection opens a section taught by a professor-kind profile. The
// profile is share-locked until the section row exists, so its role cannot
// change kind underneath.
func (s *Service) CreateSection(
	ctx context.Context,
	actor *rbac.Actor,
	courseID string,
	req CreateSectionRequest,
) (*Section, error) {
	if !actor.HasPermission(rbac.PermManageSections) {
		return nil, rbac.ErrPermissionDenied
	}

	if req.MaxCapacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	section := &Section{
		ID:                 uuid.New().String(),
		CourseID:           courseID,
		Code:               strings.ToUpper(strings.TrimSpace(req.Code)),
		Period:             strings.TrimSpace(req.Period),
		ProfessorProfileID: req.ProfessorProfileID,
		MaxCapacity:        req.MaxCapacity,
	}

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		prof, err := tx.LockProfile(ctx, req.ProfessorProfileID)
		if err != nil {
			return err
		}
		if prof.Kind != rbac.KindProfessor {
			return fmt.Errorf("section professor: %w", rbac.ErrProfileKindMismatch)
		}
		if !prof.Usable() {
			return ErrProfessorInactive
		}

		return tx.CreateSection(ctx, section)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "section created",
		"section_id", section.ID,
		"course_id", courseID,
		"period", section.Period,
		"by", actor.UserID,
	)

	return section, nil
}

func (s *Service) GetSection(ctx context.Context, id string) (*Section, error) {
	return s.repo.GetSection(ctx, id)
}

func (s *Service) ListSections(
	ctx context.Context,
	params ListSectionsParams,
) ([]Section, error) {
	return s.repo.ListSections(ctx, params)
}

// UpdateCapacity resizes a section under its enrollment lock. Shrinking
// below the live count is refused rather than evicting anyone.
func (s *Service) UpdateCapacity(
	ctx context.Context,
	actor *rbac.Actor,
	sectionID string,
	maxCapacity int,
) (*Section, error) {
	if !actor.HasPermission(rbac.PermManageSections) {
		return nil, rbac.ErrPermissionDenied
	}

	if maxCapacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	var updated *Section
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		section, err := tx.LockSection(ctx, sectionID)
		if err != nil {
			return err
		}
		if maxCapacity < section.EnrolledCount {
			return ErrCapacityBelowSeat
		}
		if err := tx.UpdateCapacity(ctx, sectionID, maxCapacity); err != nil {
			return err
		}
		section.MaxCapacity = maxCapacity
		updated = section
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
