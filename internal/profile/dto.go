// AngelaMos | 2026
// dto.go

package profile

import (
	"time"

	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type CreateProfileRequest struct {
	UserID    string  `json:"user_id"              validate:"required,uuid"`
	RoleID    string  `json:"role_id"              validate:"required,uuid"`
	DNI       string  `json:"dni"                  validate:"required,min=6,max=20,alphanum"`
	ProgramID *string `json:"program_id,omitempty" validate:"omitempty,uuid"`
	Specialty *string `json:"specialty,omitempty"  validate:"omitempty,max=120"`
}

type ChangeRoleRequest struct {
	RoleID string `json:"role_id" validate:"required,uuid"`
}

type ProfileResponse struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	RoleID    string        `json:"role_id"`
	RoleName  string        `json:"role_name"`
	Kind      rbac.RoleKind `json:"kind"`
	DNI       string        `json:"dni"`
	ProgramID *string       `json:"program_id,omitempty"`
	Specialty *string       `json:"specialty,omitempty"`
	IsActive  bool          `json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type PermissionsResponse struct {
	ProfileID   string   `json:"profile_id,omitempty"`
	Permissions []string `json:"permissions"`
}

func ToProfileResponse(p *Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		RoleID:    p.RoleID,
		RoleName:  p.RoleName,
		Kind:      p.Kind,
		DNI:       p.DNI,
		ProgramID: p.ProgramID,
		Specialty: p.Specialty,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func ToProfileResponseList(profiles []Profile) []ProfileResponse {
	out := make([]ProfileResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, ToProfileResponse(&profiles[i]))
	}
	return out
}
