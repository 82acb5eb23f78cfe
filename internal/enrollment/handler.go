// AngelaMos | 2026
// handler.go

package enrollment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

// RegisterRoutes mounts the ledger. writeLimit wraps every route that
// changes an enrollment.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	writeLimit func(http.Handler) http.Handler,
) {
	r.Route("/enrollments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{enrollmentID}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(writeLimit)

			r.Post("/", h.Create)
			r.With(middleware.RequirePermission(rbac.PermManageEnrollments)).
				Put("/{enrollmentID}/status", h.UpdateStatus)
			r.With(middleware.RequirePermission(rbac.PermGradeEnrollment)).
				Put("/{enrollmentID}/grade", h.SetGrade)
		})
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.service.Create(r.Context(), middleware.GetActor(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToEnrollmentResponse(e))
}

// List supports ?section_id=, ?student_profile_id= and ?status=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := ListParams{
		Page:             parseIntQuery(r, "page", 1),
		PageSize:         parseIntQuery(r, "page_size", 20),
		SectionID:        q.Get("section_id"),
		StudentProfileID: q.Get("student_profile_id"),
	}

	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		params.Status = status
	}
	params.Normalize()

	enrollments, total, err := h.service.List(r.Context(), middleware.GetActor(r.Context()), params)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(
		w,
		ToEnrollmentResponseList(enrollments),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "enrollmentID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToEnrollmentResponse(e))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	next, err := ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	e, err := h.service.UpdateStatus(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "enrollmentID"),
		next,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToEnrollmentResponse(e))
}

func (h *Handler) SetGrade(w http.ResponseWriter, r *http.Request) {
	var req SetGradeRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.service.SetGrade(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "enrollmentID"),
		req,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToEnrollmentResponse(e))
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
	case errors.Is(err, ErrNoAuthorizedProfile):
		core.JSONError(w, core.NewAppError(
			err,
			"no profile authorized to grade this enrollment",
			http.StatusForbidden,
			"NO_AUTHORIZED_PROFILE",
		))
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
	case errors.Is(err, ErrDuplicateEnrollment):
		core.JSONError(w, core.ConflictError(err, "DUPLICATE_ENROLLMENT"))
	case errors.Is(err, ErrCapacityExceeded):
		core.JSONError(w, core.ConflictError(err, "CAPACITY_EXCEEDED"))
	case errors.Is(err, ErrInvalidGradeRange):
		core.JSONError(w, core.DomainError(err, "INVALID_GRADE_RANGE"))
	case errors.Is(err, ErrInvalidTransition):
		core.JSONError(w, core.ConflictError(err, "INVALID_TRANSITION"))
	case errors.Is(err, ErrInactiveProfile):
		core.JSONError(w, core.DomainError(err, "PROFILE_INACTIVE"))
	case errors.Is(err, core.ErrInvalidInput):
		core.JSONError(w, core.ValidationError(err.Error()))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "resource")
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
