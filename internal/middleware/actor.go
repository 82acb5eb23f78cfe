// AngelaMos | 2026
// actor.go

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/rbac"
)

type ActorLoader interface {
	LoadActor(ctx context.Context, userID string) (*rbac.Actor, error)
}

// LoadActor resolves the authenticated user's profiles once per request and
// stores the result in the context. Must run after Authenticator.
func LoadActor(loader ActorLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				core.Unauthorized(w, "")
				return
			}

			actor, err := loader.LoadActor(r.Context(), userID)
			if err != nil {
				if errors.Is(err, core.ErrNotFound) {
					core.JSONError(w, core.TokenRevokedError())
					return
				}
				core.InternalServerError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission admits the request when any active profile of the actor
// grants code.
func RequirePermission(code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor == nil {
				core.Unauthorized(w, "")
				return
			}

			if !actor.HasPermission(code) {
				core.Forbidden(w, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := GetActor(r.Context())
		if actor == nil {
			core.Unauthorized(w, "")
			return
		}

		if !actor.IsSuperuser {
			core.Forbidden(w, "superuser required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func GetActor(ctx context.Context) *rbac.Actor {
	if actor, ok := ctx.Value(ActorKey).(*rbac.Actor); ok {
		return actor
	}
	return nil
}

// WithActor is used by tests and background callers that already hold an
// actor.
func WithActor(ctx context.Context, actor *rbac.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}
