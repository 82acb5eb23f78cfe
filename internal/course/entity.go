// AngelaMos | 2026
// entity.go

package course

import (
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/academic-core/internal/core"
)

var (
	ErrDuplicateCourse   = errors.New("a course with this code already exists")
	ErrDuplicateSection  = errors.New("section already exists for this course and period")
	ErrInvalidCapacity   = fmt.Errorf("max capacity must be greater than zero: %w", core.ErrInvalidInput)
	ErrCapacityBelowSeat = errors.New("max capacity cannot drop below the current enrollment count")
	ErrProfessorInactive = errors.New("professor profile is not active")
)

type Course struct {
	ID        string    `db:"id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	Credits   int       `db:"credits"`
	CreatedAt time.Time `db:"created_at"`
}

// Section is a course offering in one period. EnrolledCount is computed
// from non-cancelled enrollments at read time.
type Section struct {
	ID                 string    `db:"id"`
	CourseID           string    `db:"course_id"`
	Code               string    `db:"code"`
	Period             string    `db:"period"`
	ProfessorProfileID string    `db:"professor_profile_id"`
	MaxCapacity        int       `db:"max_capacity"`
	EnrolledCount      int       `db:"enrolled_count"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (s *Section) AvailableSeats() int {
	return s.MaxCapacity - s.EnrolledCount
}
