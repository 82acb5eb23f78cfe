// AngelaMos | 2026
// entity.go

package enrollment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

var (
	ErrDuplicateEnrollment = errors.New("student is already enrolled in this section")
	ErrCapacityExceeded    = errors.New("section has no available seats")
	ErrInvalidGradeRange   = errors.New("grade must be between 0 and 20")
	ErrNoAuthorizedProfile = fmt.Errorf("no profile authorized to grade this enrollment: %w", rbac.ErrPermissionDenied)
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrInactiveProfile     = errors.New("student profile is not active")
	ErrInvalidGrade        = fmt.Errorf("grade must be a number with at most 2 decimal places: %w", core.ErrInvalidInput)
	ErrInvalidCost         = fmt.Errorf("cost must be a non-negative amount with at most 2 decimal places: %w", core.ErrInvalidInput)
	ErrInvalidStatus       = fmt.Errorf("unknown enrollment status: %w", core.ErrInvalidInput)
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusCompleted, StatusCancelled},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusPaid, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OccupiesSeat is false only for cancelled enrollments.
func (s Status) OccupiesSeat() bool {
	return s != StatusCancelled
}

type GradeStatus string

const (
	GradePending GradeStatus = "PENDING"
	GradePassed  GradeStatus = "PASSED"
	GradeFailed  GradeStatus = "FAILED"
)

var (
	MinGrade     = decimal.Zero
	MaxGrade     = decimal.NewFromInt(20)
	PassingGrade = decimal.NewFromInt(11)
)

// Enrollment carries the section's professor so authorization can be
// decided without another lookup.
type Enrollment struct {
	ID                 string              `db:"id"`
	StudentProfileID   string              `db:"student_profile_id"`
	SectionID          string              `db:"section_id"`
	ProfessorProfileID string              `db:"professor_profile_id"`
	Status             Status              `db:"status"`
	Cost               decimal.Decimal     `db:"cost"`
	Grade              decimal.NullDecimal `db:"grade"`
	GradeNotes         *string             `db:"grade_notes"`
	GradedByID         *string             `db:"graded_by_id"`
	GradedAt           *time.Time          `db:"graded_at"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
}

func (e *Enrollment) GradeStatus() GradeStatus {
	if !e.Grade.Valid {
		return GradePending
	}
	if e.Grade.Decimal.GreaterThanOrEqual(PassingGrade) {
		return GradePassed
	}
	return GradeFailed
}

// ParseGrade accepts a decimal string in [0, 20] with at most two
// fractional digits.
func ParseGrade(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidGrade
	}
	if d.LessThan(MinGrade) || d.GreaterThan(MaxGrade) {
		return decimal.Zero, ErrInvalidGradeRange
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, ErrInvalidGrade
	}
	return d.Round(2), nil
}

func validateCost(cost decimal.Decimal) error {
	if cost.IsNegative() || !cost.Equal(cost.Round(2)) {
		return ErrInvalidCost
	}
	return nil
}
