package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// Roles accepted on service tokens
const (
	RoleAdmin = "admin"
	RoleVMS   = "vms"
)

// RequireRole middleware ensures the caller has one of the specified roles
func RequireRole(logger *zap.Logger, allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetCallerRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("Caller role not authorized",
				zap.String("role", role),
				zap.Strings("allowed_roles", allowedRoles),
				zap.String("path", r.URL.Path),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
