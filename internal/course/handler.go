// AngelaMos | 2026
// handler.go

package course

import (
	"encoding/json"
	"errors"
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
	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.ListCourses)
		r.Get("/{courseID}", h.GetCourse)
		r.Get("/{courseID}/sections", h.ListCourseSections)

		r.With(middleware.RequirePermission(rbac.PermManageCourses)).
			Post("/", h.CreateCourse)
		r.With(middleware.RequirePermission(rbac.PermManageSections)).
			Post("/{courseID}/sections", h.CreateSection)
	})

	r.Route("/sections", func(r chi.Router) {
		r.Get("/", h.ListSections)
		r.Get("/{sectionID}", h.GetSection)
		r.With(middleware.RequirePermission(rbac.PermManageSections)).
			Put("/{sectionID}/capacity", h.UpdateCapacity)
	})
}

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.service.CreateCourse(r.Context(), middleware.GetActor(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToCourseResponse(c))
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListCourses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]CourseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, ToCourseResponse(&courses[i]))
	}

	core.OK(w, out)
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToCourseResponse(c))
}

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var req CreateSectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.service.CreateSection(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "courseID"),
		req,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToSectionResponse(s))
}

func (h *Handler) ListCourseSections(w http.ResponseWriter, r *http.Request) {
	h.listSections(w, r, ListSectionsParams{
		CourseID: chi.URLParam(r, "courseID"),
		Period:   r.URL.Query().Get("period"),
	})
}

// ListSections filters on ?course_id=, ?period= and ?professor_profile_id=.
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.listSections(w, r, ListSectionsParams{
		CourseID:           q.Get("course_id"),
		Period:             q.Get("period"),
		ProfessorProfileID: q.Get("professor_profile_id"),
	})
}

func (h *Handler) listSections(
	w http.ResponseWriter,
	r *http.Request,
	params ListSectionsParams,
) {
	sections, err := h.service.ListSections(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]SectionResponse, 0, len(sections))
	for i := range sections {
		out = append(out, ToSectionResponse(&sections[i]))
	}

	core.OK(w, out)
}

func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetSection(r.Context(), chi.URLParam(r, "sectionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToSectionResponse(s))
}

func (h *Handler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	var req UpdateCapacityRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.service.UpdateCapacity(
		r.Context(),
		middleware.GetActor(r.Context()),
		chi.URLParam(r, "sectionID"),
		req.MaxCapacity,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToSectionResponse(s))
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
	case errors.Is(err, rbac.ErrProfileKindMismatch):
		core.JSONError(w, core.DomainError(err, "PROFILE_KIND_MISMATCH"))
	case errors.Is(err, ErrInvalidCapacity):
		core.JSONError(w, core.DomainError(err, "INVALID_CAPACITY"))
	case errors.Is(err, ErrCapacityBelowSeat):
		core.JSONError(w, core.ConflictError(err, "CAPACITY_BELOW_ENROLLED"))
	case errors.Is(err, ErrProfessorInactive):
		core.JSONError(w, core.DomainError(err, "PROFILE_INACTIVE"))
	case errors.Is(err, ErrDuplicateSection):
		core.JSONError(w, core.ConflictError(err, "DUPLICATE_SECTION"))
	case errors.Is(err, ErrDuplicateCourse):
		core.JSONError(w, core.ConflictError(err, "DUPLICATE_COURSE"))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "resource")
	default:
		core.InternalServerError(w, err)
	}
}
