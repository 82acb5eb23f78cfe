// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/middleware"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type fakeRegistry struct {
	roles   map[string]*rbac.Role
	inUse   map[string]bool
	granted []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		roles: map[string]*rbac.Role{
			"r1": {ID: "r1", Name: "Professor", Kind: rbac.KindProfessor, IsActive: true},
		},
		inUse: map[string]bool{},
	}
}

func (f *fakeRegistry) Permissions() []rbac.Permission { return rbac.Catalog() }

func (f *fakeRegistry) ListRoles(context.Context) ([]rbac.Role, error) {
	out := []rbac.Role{}
	for _, r := range f.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRegistry) GetRole(_ context.Context, id string) (*rbac.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return r, nil
}

func (f *fakeRegistry) CreateRole(_ context.Context, name, description string, kind rbac.RoleKind) (*rbac.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			return nil, core.ErrDuplicateKey
		}
	}
	r := &rbac.Role{ID: "r" + name, Name: name, Description: description, Kind: kind, IsActive: true}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeRegistry) GrantPermission(_ context.Context, roleID, code string) error {
	if !rbac.IsKnownPermission(code) {
		return rbac.ErrUnknownPermission
	}
	if _, ok := f.roles[roleID]; !ok {
		return core.ErrNotFound
	}
	f.granted = append(f.granted, code)
	return nil
}

func (f *fakeRegistry) RevokePermission(context.Context, string, string) error { return nil }

func (f *fakeRegistry) SetRoleActive(_ context.Context, roleID string, active bool) error {
	r, ok := f.roles[roleID]
	if !ok {
		return core.ErrNotFound
	}
	r.IsActive = active
	return nil
}

func (f *fakeRegistry) DeleteRole(_ context.Context, roleID string) error {
	if f.inUse[roleID] {
		return rbac.ErrRoleInUse
	}
	delete(f.roles, roleID)
	return nil
}

type fakeTasks struct {
	requestedBy string
	err         error
}

func (f *fakeTasks) EnqueuePurgeExpiredTokens(_ context.Context, requestedBy string) (string, error) {
	f.requestedBy = requestedBy
	return "task-1", f.err
}

func superuser() *rbac.Actor {
	return rbac.NewActor("root", true)
}

func userManager() *rbac.Actor {
	return rbac.NewActor("mgr", false, rbac.ProfileGrant{
		ProfileID:     "p1",
		Kind:          rbac.KindOther,
		ProfileActive: true,
		RoleActive:    true,
		Permissions:   map[string]struct{}{rbac.PermManageUsers: {}},
	})
}

func newRouter(h *Handler, actor *rbac.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), actor)))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoleReadsNeedManageUsers(t *testing.T) {
	h := NewHandler(HandlerConfig{Roles: newFakeRegistry()})

	rec := do(t, newRouter(h, userManager()), http.MethodGet, "/admin/roles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data []RoleResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, rbac.KindProfessor, env.Data[0].Kind)
	assert.NotNil(t, env.Data[0].Permissions)

	student := rbac.NewActor("s", false)
	rec = do(t, newRouter(h, student), http.MethodGet, "/admin/roles", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleWritesAreSuperuserOnly(t *testing.T) {
	reg := newFakeRegistry()
	h := NewHandler(HandlerConfig{Roles: reg})

	rec := do(t, newRouter(h, userManager()), http.MethodPut, "/admin/roles/r1/permissions/grade_enrollment", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, reg.granted)

	rec = do(t, newRouter(h, superuser()), http.MethodPut, "/admin/roles/r1/permissions/grade_enrollment", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{rbac.PermGradeEnrollment}, reg.granted)
}

func TestGrantUnknownPermission(t *testing.T) {
	h := NewHandler(HandlerConfig{Roles: newFakeRegistry()})

	rec := do(t, newRouter(h, superuser()), http.MethodPut, "/admin/roles/r1/permissions/fly", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateRole(t *testing.T) {
	h := NewHandler(HandlerConfig{Roles: newFakeRegistry()})
	router := newRouter(h, superuser())

	rec := do(t, router, http.MethodPost, "/admin/roles", `{"name":"Tutor","kind":"professor"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/admin/roles", `{"name":"Tutor","kind":"professor"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, "/admin/roles", `{"name":"Janitor","kind":"staff"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRoleInUse(t *testing.T) {
	reg := newFakeRegistry()
	reg.inUse["r1"] = true
	h := NewHandler(HandlerConfig{Roles: reg})

	rec := do(t, newRouter(h, superuser()), http.MethodDelete, "/admin/roles/r1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROLE_IN_USE")
}

func TestDeactivateRole(t *testing.T) {
	reg := newFakeRegistry()
	h := NewHandler(HandlerConfig{Roles: reg})

	rec := do(t, newRouter(h, superuser()), http.MethodPost, "/admin/roles/r1/deactivate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, reg.roles["r1"].IsActive)

	rec = do(t, newRouter(h, superuser()), http.MethodPost, "/admin/roles/missing/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurgeTokensEnqueues(t *testing.T) {
	tasks := &fakeTasks{}
	h := NewHandler(HandlerConfig{Roles: newFakeRegistry(), Tasks: tasks})

	rec := do(t, newRouter(h, superuser()), http.MethodPost, "/admin/maintenance/purge-tokens", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "task-1")

	tasks.err = errors.New("redis down")
	rec = do(t, newRouter(h, superuser()), http.MethodPost, "/admin/maintenance/purge-tokens", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	h = NewHandler(HandlerConfig{Roles: newFakeRegistry()})
	rec = do(t, newRouter(h, superuser()), http.MethodPost, "/admin/maintenance/purge-tokens", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSystemStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Roles:   newFakeRegistry(),
		DBStats: func() sql.DBStats { return sql.DBStats{MaxOpenConnections: 25, InUse: 3} },
		DBPing:  func(context.Context) error { return nil },
		RedisPing: func(context.Context) error {
			return errors.New("down")
		},
	})

	rec := do(t, newRouter(h, superuser()), http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Data.Database.Healthy)
	require.NotNil(t, env.Data.Database.Stats)
	assert.Equal(t, 25, env.Data.Database.Stats.MaxOpenConnections)
	assert.False(t, env.Data.Redis.Healthy)
	assert.Nil(t, env.Data.Redis.Stats)
	assert.NotEmpty(t, env.Data.Runtime.GoVersion)
}
