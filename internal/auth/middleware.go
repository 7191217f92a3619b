package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/config"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/sentinel"
	"github.com/fitstudio/staff-console/internal/utils"
)

type ctxKey string

const ctxUserKey ctxKey = "currentUser"

// UserLoader resolves the account behind a token.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

func GetUserFromCtx(ctx context.Context) *models.User {
	if u, ok := ctx.Value(ctxUserKey).(*models.User); ok {
		return u
	}
	return nil
}

// WithUser stores u on ctx. Exposed for handler tests.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

// AuthMiddleware validates the bearer JWT, loads the user, ensures the account
// is active and sets it in the request context.
func AuthMiddleware(cfg *config.Config, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				utils.WriteError(w, apperr.New(apperr.CodeUnauthorized, "missing authorization"))
				return
			}
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				utils.WriteError(w, apperr.New(apperr.CodeUnauthorized, "invalid authorization header"))
				return
			}
			claims, err := ParseAndValidateToken(cfg, strings.TrimSpace(parts[1]))
			if err != nil {
				utils.WriteError(w, err)
				return
			}
			u, err := users.GetUserByID(r.Context(), claims.UserID)
			switch {
			case errors.Is(err, sentinel.ErrNotFound) || apperr.HasCode(err, apperr.CodeNotFound):
				utils.WriteError(w, apperr.New(apperr.CodeUnauthorized, "user not found"))
				return
			case err != nil:
				utils.WriteError(w, apperr.Wrap(err, apperr.CodeInternal, "could not load user"))
				return
			}
			if !u.Active {
				utils.WriteError(w, apperr.New(apperr.CodeForbidden, "account disabled"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RoleMiddleware allows multiple allowed roles; usage: RoleMiddleware(models.RoleAdmin)
func RoleMiddleware(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	set := map[models.Role]struct{}{}
	for _, r := range allowedRoles {
		set[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := GetUserFromCtx(r.Context())
			if u == nil {
				utils.WriteError(w, apperr.New(apperr.CodeUnauthorized, "unauthorized"))
				return
			}
			if _, ok := set[u.Role]; !ok {
				utils.WriteError(w, apperr.New(apperr.CodeForbidden, "forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
