// AngelaMos | 2026
// roles.go

package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/middleware"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.roles.Permissions())
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		out = append(out, ToRoleResponse(&roles[i]))
	}

	core.OK(w, out)
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToRoleResponse(role))
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	role, err := h.roles.CreateRole(r.Context(), req.Name, req.Description, rbac.RoleKind(req.Kind))
	if err != nil {
		writeError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "role created",
		"role_id", role.ID,
		"kind", role.Kind,
		"by", middleware.GetUserID(r.Context()),
	)

	core.Created(w, ToRoleResponse(role))
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.DeleteRole(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ActivateRole(w http.ResponseWriter, r *http.Request) {
	h.setRoleActive(w, r, true)
}

func (h *Handler) DeactivateRole(w http.ResponseWriter, r *http.Request) {
	h.setRoleActive(w, r, false)
}

func (h *Handler) setRoleActive(w http.ResponseWriter, r *http.Request, active bool) {
	roleID := chi.URLParam(r, "roleID")

	if err := h.roles.SetRoleActive(r.Context(), roleID, active); err != nil {
		writeError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "role activation changed",
		"role_id", roleID,
		"active", active,
		"by", middleware.GetUserID(r.Context()),
	)

	core.NoContent(w)
}

func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, code := chi.URLParam(r, "roleID"), chi.URLParam(r, "code")

	if err := h.roles.GrantPermission(r.Context(), roleID, code); err != nil {
		writeError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "permission granted",
		"role_id", roleID,
		"permission", code,
		"by", middleware.GetUserID(r.Context()),
	)

	core.NoContent(w)
}

func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, code := chi.URLParam(r, "roleID"), chi.URLParam(r, "code")

	if err := h.roles.RevokePermission(r.Context(), roleID, code); err != nil {
		writeError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "permission revoked",
		"role_id", roleID,
		"permission", code,
		"by", middleware.GetUserID(r.Context()),
	)

	core.NoContent(w)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrRoleInUse):
		core.JSONError(w, core.ConflictError(err, "ROLE_IN_USE"))
	case errors.Is(err, core.ErrDuplicateKey):
		core.JSONError(w, core.DuplicateError("role name"))
	case errors.Is(err, core.ErrInvalidInput):
		core.JSONError(w, core.ValidationError(err.Error()))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "role")
	default:
		core.InternalServerError(w, err)
	}
}
