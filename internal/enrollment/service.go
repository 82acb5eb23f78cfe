// AngelaMos | 2026
// service.go

package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type Service struct {
	repo    Repository
	metrics *core.Metrics
	now     func() time.Time
}

func NewService(repo Repository, metrics *core.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics, now: time.Now}
}

// Create registers a student profile in a section. The section row lock is
// held from the seat count to the insert, so concurrent requests for the
// last seat cannot both succeed.
func (s *Service) Create(
	ctx context.Context,
	actor *rbac.Actor,
	req CreateEnrollmentRequest,
) (_ *Enrollment, err error) {
	ctx, span := core.StartSpan(ctx, "enrollment.create",
		attribute.String("section.id", req.SectionID),
		attribute.String("profile.id", req.StudentProfileID),
	)
	defer func() { core.EndSpan(span, err) }()

	if !actor.OwnsProfile(req.StudentProfileID) &&
		!actor.HasPermission(rbac.PermManageEnrollments) {
		return nil, rbac.ErrPermissionDenied
	}

	if err := validateCost(req.Cost); err != nil {
		return nil, err
	}

	e := &Enrollment{
		ID:               uuid.New().String(),
		StudentProfileID: req.StudentProfileID,
		SectionID:        req.SectionID,
		Status:           StatusPending,
		Cost:             req.Cost.Round(2),
	}

	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		section, err := tx.LockSection(ctx, req.SectionID)
		if err != nil {
			return err
		}

		student, err := tx.LockProfile(ctx, req.StudentProfileID)
		if err != nil {
			return err
		}
		if student.Kind != rbac.KindStudent {
			return fmt.Errorf("enrolling %s profile: %w", student.Kind, rbac.ErrProfileKindMismatch)
		}
		if !student.Usable() {
			return ErrInactiveProfile
		}

		exists, err := tx.Exists(ctx, req.StudentProfileID, req.SectionID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateEnrollment
		}

		if section.EnrolledCount >= section.MaxCapacity {
			return ErrCapacityExceeded
		}

		e.ProfessorProfileID = section.ProfessorProfileID
		return tx.Insert(ctx, e)
	})
	if err != nil {
		s.metrics.EnrollmentRequest(outcome(err))
		return nil, err
	}

	s.metrics.EnrollmentRequest("created")
	core.AddSpanEvent(ctx, "enrollment.created",
		attribute.String("enrollment.id", e.ID),
		attribute.String("section.id", e.SectionID),
	)

	return e, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrDuplicateEnrollment):
		return "duplicate"
	case errors.Is(err, rbac.ErrProfileKindMismatch), errors.Is(err, ErrInactiveProfile):
		return "rejected"
	}
	return "error"
}

// Get answers with PermissionDenied, never NotFound, when the enrollment
// exists but the actor may not see it.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, id string) (*Enrollment, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanView(actor, e) {
		return nil, rbac.ErrPermissionDenied
	}

	return e, nil
}

// List returns only what CanView would allow.
func (s *Service) List(
	ctx context.Context,
	actor *rbac.Actor,
	params ListParams,
) ([]Enrollment, int, error) {
	vis := VisibilityFor(actor)
	if vis.Empty() {
		return []Enrollment{}, 0, nil
	}
	return s.repo.List(ctx, vis, params)
}

func (s *Service) UpdateStatus(
	ctx context.Context,
	actor *rbac.Actor,
	id string,
	next Status,
) (*Enrollment, error) {
	if !actor.HasPermission(rbac.PermManageEnrollments) {
		return nil, rbac.ErrPermissionDenied
	}

	var updated *Enrollment
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		e, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if !e.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s to %s: %w", e.Status, next, ErrInvalidTransition)
		}

		if err := tx.UpdateStatus(ctx, id, next); err != nil {
			return err
		}

		e.Status = next
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "enrollment status changed",
		"enrollment_id", id,
		"status", next,
		"by", actor.UserID,
	)

	return updated, nil
}

// SetGrade records a grade, replacing any earlier one. The range is checked
// before the grader is resolved, and the resolved grader is checked again
// against the locked row before writing.
func (s *Service) SetGrade(
	ctx context.Context,
	actor *rbac.Actor,
	id string,
	req SetGradeRequest,
) (_ *Enrollment, err error) {
	ctx, span := core.StartSpan(ctx, "enrollment.set_grade",
		attribute.String("enrollment.id", id),
	)
	defer func() { core.EndSpan(span, err) }()

	grade, err := ParseGrade(req.Grade)
	if err != nil {
		return nil, err
	}

	var updated *Enrollment
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		e, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		grader, err := ResolveGrader(actor, e, req.ProfileID)
		if err != nil {
			return err
		}

		if !canGradeWith(actor, e, grader) {
			return rbac.ErrPermissionDenied
		}

		now := s.now()
		e.Grade = decimal.NullDecimal{Decimal: grade, Valid: true}
		e.GradeNotes = req.Notes
		e.GradedByID = grader
		e.GradedAt = &now

		if err := tx.UpdateGrade(ctx, e); err != nil {
			return err
		}

		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.GradeRecorded()
	slog.InfoContext(ctx, "grade recorded",
		"enrollment_id", id,
		"graded_by", derefID(updated.GradedByID),
		"user_id", actor.UserID,
		"grade_status", updated.GradeStatus(),
	)

	return updated, nil
}

func canGradeWith(actor *rbac.Actor, e *Enrollment, grader *string) bool {
	if actor.IsSuperuser {
		return true
	}
	if grader == nil {
		return false
	}
	g, ok := actor.Profile(*grader)
	return ok && canGradeAs(actor, g, e)
}

func derefID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
