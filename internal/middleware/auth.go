package middleware

import (
	"context"
	"net/http"

	"storefront-be/internal/apperror"
	"storefront-be/internal/auth"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// ActiveChecker reports whether the account behind a token may still act.
type ActiveChecker interface {
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

// AuthMiddleware requires a valid access token and stores the caller in the
// request context. users may be nil to trust the token alone.
func AuthMiddleware(tokens TokenParser, users ActiveChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.ExtractAccessToken(r)
			if raw == "" {
				unauthorized(w, "Not authorised, no token provided")
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("rejected access token", zap.Error(err))
				unauthorized(w, "Invalid or expired token")
				return
			}

			if users != nil {
				ok, err := users.IsActive(r.Context(), claims.UserID)
				if err != nil {
					logger.FromCtx(r.Context()).Error("failed to load token owner",
						zap.String("user_id", claims.UserID.String()), zap.Error(err))
					utils.WriteJSONError(w, http.StatusInternalServerError,
						string(apperror.KindInternal), "internal server error")
					return
				}
				if !ok {
					unauthorized(w, "User not found or deactivated")
					return
				}
			}

			ctx := utils.SetUserContext(r.Context(), claims.UserID, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsAdmin(r.Context()) {
			utils.WriteJSONError(w, http.StatusForbidden, string(apperror.KindForbidden), "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	utils.WriteJSONError(w, http.StatusUnauthorized, string(apperror.KindUnauthorized), msg)
}
