// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/middleware"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

// RoleRegistry is the slice of rbac.Service the admin API drives.
type RoleRegistry interface {
	Permissions() []rbac.Permission
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id string) (*rbac.Role, error)
	CreateRole(ctx context.Context, name, description string, kind rbac.RoleKind) (*rbac.Role, error)
	GrantPermission(ctx context.Context, roleID, code string) error
	RevokePermission(ctx context.Context, roleID, code string) error
	SetRoleActive(ctx context.Context, roleID string, active bool) error
	DeleteRole(ctx context.Context, roleID string) error
}

type TaskEnqueuer interface {
	EnqueuePurgeExpiredTokens(ctx context.Context, requestedBy string) (string, error)
}

type Handler struct {
	roles      RoleRegistry
	tasks      TaskEnqueuer
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
	validator  *validator.Validate
}

type HandlerConfig struct {
	Roles      RoleRegistry
	Tasks      TaskEnqueuer
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		roles:      cfg.Roles,
		tasks:      cfg.Tasks,
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		redisPing:  cfg.RedisPing,
		dbPing:     cfg.DBPing,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /admin. Reading the role registry needs
// manage_users; changing it, like the system endpoints, is superuser only.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(rbac.PermManageUsers))

			r.Get("/permissions", h.ListPermissions)
			r.Get("/roles", h.ListRoles)
			r.Get("/roles/{roleID}", h.GetRole)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperuser)

			r.Post("/roles", h.CreateRole)
			r.Delete("/roles/{roleID}", h.DeleteRole)
			r.Post("/roles/{roleID}/activate", h.ActivateRole)
			r.Post("/roles/{roleID}/deactivate", h.DeactivateRole)
			r.Put("/roles/{roleID}/permissions/{code}", h.GrantPermission)
			r.Delete("/roles/{roleID}/permissions/{code}", h.RevokePermission)

			r.Post("/maintenance/purge-tokens", h.PurgeExpiredTokens)

			r.Get("/stats", h.GetSystemStats)
			r.Get("/stats/db", h.GetDatabaseStats)
			r.Get("/stats/redis", h.GetRedisStats)
			r.Get("/stats/runtime", h.GetRuntimeStats)
		})
	})
}

// PurgeExpiredTokens queues the housekeeping task instead of running it on
// the request path.
func (h *Handler) PurgeExpiredTokens(w http.ResponseWriter, r *http.Request) {
	if h.tasks == nil {
		core.JSONError(w, core.NewAppError(
			nil,
			"background worker not configured",
			http.StatusServiceUnavailable,
			"WORKER_UNAVAILABLE",
		))
		return
	}

	id, err := h.tasks.EnqueuePurgeExpiredTokens(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Accepted(w, TaskResponse{TaskID: id})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	core.OK(w, SystemStatsResponse{
		Database: DatabaseStatus{Healthy: dbHealthy, Stats: h.getDBStats()},
		Redis:    RedisStatus{Healthy: redisHealthy, Stats: h.getRedisStats()},
		Runtime:  readRuntimeStats(),
	})
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntimeStats())
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}
