// AngelaMos | 2026
// handler.go

package profile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/middleware"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/me", h.ListMine)
		r.Get("/me/permissions", h.MyPermissions)
		r.Get("/{profileID}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(rbac.PermManageUsers))

			r.Post("/", h.Create)
			r.Put("/{profileID}/role", h.ChangeRole)
			r.Post("/{profileID}/deactivate", h.Deactivate)
			r.Post("/{profileID}/reactivate", h.Reactivate)
		})
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), middleware.GetActor(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToProfileResponse(p))
}

// List serves ?user_id=; without it the caller's own profiles are listed.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.UserID
	}

	profiles, err := h.service.ListForUser(r.Context(), actor, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponseList(profiles))
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListMine(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponseList(profiles))
}

func (h *Handler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profile_id")

	codes, err := h.service.Permissions(middleware.GetActor(r.Context()), profileID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, PermissionsResponse{ProfileID: profileID, Permissions: codes})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "profileID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(p))
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.ChangeRole(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "profileID"),
		req.RoleID,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(p))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	err := h.service.Deactivate(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "profileID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	err := h.service.Reactivate(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "profileID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrPermissionDenied):
		core.Forbidden(w, "")
	case errors.Is(err, rbac.ErrScopeMismatch):
		core.JSONError(w, core.NewAppError(
			err,
			err.Error(),
			http.StatusForbidden,
			"SCOPE_MISMATCH",
		))
	case errors.Is(err, rbac.ErrProfileKindMismatch):
		slog.Warn("profile kind mismatch", "error", err)
		core.JSONError(w, core.DomainError(err, "PROFILE_KIND_MISMATCH"))
	case errors.Is(err, ErrRoleInactive):
		core.JSONError(w, core.DomainError(err, "ROLE_INACTIVE"))
	case errors.Is(err, ErrRoleNotFound):
		core.JSONError(w, core.ValidationError(err.Error()))
	case errors.Is(err, ErrDuplicateDNI):
		core.JSONError(w, core.DuplicateError("dni"))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "profile")
	default:
		core.InternalServerError(w, err)
	}
}
