package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	CallerIDKey   contextKey = "caller_id"
	CallerRoleKey contextKey = "caller_role"
)

// ServiceClaims are carried by tokens issued to calling systems and operators.
// Subject names the caller.
type ServiceClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates HMAC signed service tokens and stores the caller in the context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || scheme != "Bearer" || tokenString == "" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims := &ServiceClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			if !token.Valid || claims.Subject == "" || claims.Role == "" {
				logger.Debug("Token is missing caller claims")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), CallerIDKey, claims.Subject)
			ctx = context.WithValue(ctx, CallerRoleKey, claims.Role)

			logger.Debug("Caller authenticated",
				zap.String("caller_id", claims.Subject),
				zap.String("role", claims.Role),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerID extracts the authenticated caller from request context
func GetCallerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CallerIDKey).(string)
	return id, ok
}

// GetCallerRole extracts the caller role from request context
func GetCallerRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(CallerRoleKey).(string)
	return role, ok
}
