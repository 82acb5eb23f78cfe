// AngelaMos | 2026
// dto.go

package enrollment

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateEnrollmentRequest struct {
	StudentProfileID string          `json:"student_profile_id" validate:"required,uuid"`
	SectionID        string          `json:"section_id"         validate:"required,uuid"`
	Cost             decimal.Decimal `json:"cost"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetGradeRequest takes the grade as a decimal string. ProfileID optionally
// pins the professor profile acting as grader.
type SetGradeRequest struct {
	Grade     string  `json:"grade"                validate:"required,max=8"`
	Notes     *string `json:"notes,omitempty"      validate:"omitempty,max=2000"`
	ProfileID string  `json:"profile_id,omitempty" validate:"omitempty,uuid"`
}

type ListParams struct {
	Page             int
	PageSize         int
	SectionID        string
	StudentProfileID string
	Status           Status
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type EnrollmentResponse struct {
	ID                 string      `json:"id"`
	StudentProfileID   string      `json:"student_profile_id"`
	SectionID          string      `json:"section_id"`
	ProfessorProfileID string      `json:"professor_profile_id"`
	Status             Status      `json:"status"`
	Cost               string      `json:"cost"`
	Grade              *string     `json:"grade"`
	GradeStatus        GradeStatus `json:"grade_status"`
	GradeNotes         *string     `json:"grade_notes,omitempty"`
	GradedByID         *string     `json:"graded_by_id,omitempty"`
	GradedAt           *time.Time  `json:"graded_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func ToEnrollmentResponse(e *Enrollment) EnrollmentResponse {
	resp := EnrollmentResponse{
		ID:                 e.ID,
		StudentProfileID:   e.StudentProfileID,
		SectionID:          e.SectionID,
		ProfessorProfileID: e.ProfessorProfileID,
		Status:             e.Status,
		Cost:               e.Cost.StringFixed(2),
		GradeStatus:        e.GradeStatus(),
		GradeNotes:         e.GradeNotes,
		GradedByID:         e.GradedByID,
		GradedAt:           e.GradedAt,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if e.Grade.Valid {
		g := e.Grade.Decimal.StringFixed(2)
		resp.Grade = &g
	}
	return resp
}

func ToEnrollmentResponseList(enrollments []Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, 0, len(enrollments))
	for i := range enrollments {
		out = append(out, ToEnrollmentResponse(&enrollments[i]))
	}
	return out
}
