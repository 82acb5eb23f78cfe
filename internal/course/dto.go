// AngelaMos | 2026
// dto.go

package course

import (
	"time"
)

type CreateCourseRequest struct {
	Code    string `json:"code"    validate:"required,min=2,max=20"`
	Name    string `json:"name"    validate:"required,min=2,max=200"`
	Credits int    `json:"credits" validate:"gte=0,lte=30"`
}

type CreateSectionRequest struct {
	Code               string `json:"code"                 validate:"required,min=1,max=20"`
	Period             string `json:"period"               validate:"required,min=4,max=20"`
	ProfessorProfileID string `json:"professor_profile_id" validate:"required,uuid"`
	MaxCapacity        int    `json:"max_capacity"`
}

type UpdateCapacityRequest struct {
	MaxCapacity int `json:"max_capacity"`
}

type ListSectionsParams struct {
	CourseID           string
	Period             string
	ProfessorProfileID string
}

type CourseResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

type SectionResponse struct {
	ID                 string    `json:"id"`
	CourseID           string    `json:"course_id"`
	Code               string    `json:"code"`
	Period             string    `json:"period"`
	ProfessorProfileID string    `json:"professor_profile_id"`
	MaxCapacity        int       `json:"max_capacity"`
	EnrolledCount      int       `json:"enrolled_count"`
	AvailableSeats     int       `json:"available_seats"`
	CreatedAt          time.Time `json:"created_at"`
}

func ToCourseResponse(c *Course) CourseResponse {
	return CourseResponse{
		ID:        c.ID,
		Code:      c.Code,
		Name:      c.Name,
		Credits:   c.Credits,
		CreatedAt: c.CreatedAt,
	}
}

func ToSectionResponse(s *Section) SectionResponse {
	return SectionResponse{
		ID:                 s.ID,
		CourseID:           s.CourseID,
		Code:               s.Code,
		Period:             s.Period,
		ProfessorProfileID: s.ProfessorProfileID,
		MaxCapacity:        s.MaxCapacity,
		EnrolledCount:      s.EnrolledCount,
		AvailableSeats:     s.AvailableSeats(),
		CreatedAt:          s.CreatedAt,
	}
}
