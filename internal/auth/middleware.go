package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/google/uuid"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	jwtManager *JWTManager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

func inject(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, api.UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, api.TenantIDKey, claims.TenantID)
	ctx = context.WithValue(ctx, api.UserRoleKey, claims.Role)

	// Also populate internal/tenant's context keys, which repositories use
	// to drive SetTenantIDForPool (spec §5 optional RLS).
	if tenantUUID, err := uuid.Parse(claims.TenantID); err == nil {
		ctx = tenant.WithTenantID(ctx, tenantUUID)
		ctx = tenant.WithRole(ctx, claims.Role)
		if userUUID, err := uuid.Parse(claims.UserID); err == nil {
			ctx = tenant.WithUserID(ctx, userUUID)
		}
	}
	return ctx
}

// RequireAuth returns middleware that requires a valid JWT token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			api.JSONError(w, http.StatusUnauthorized, "Authorization header required", api.ErrCodeUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			api.JSONError(w, http.StatusUnauthorized, "Invalid authorization format", api.ErrCodeUnauthorized)
			return
		}

		token := authHeader[7:]
		claims, err := m.jwtManager.ValidateAccessToken(token)
		if err != nil {
			switch err {
			case ErrExpiredToken:
				api.JSONError(w, http.StatusUnauthorized, "Token has expired", api.ErrCodeTokenExpired)
			case ErrInvalidToken, ErrInvalidClaims:
				api.JSONError(w, http.StatusUnauthorized, "Invalid token", api.ErrCodeInvalidToken)
			default:
				api.JSONError(w, http.StatusUnauthorized, "Authentication failed", api.ErrCodeUnauthorized)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(inject(r.Context(), claims)))
	})
}

// OptionalAuth returns middleware that validates JWT if present but doesn't require it
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(authHeader[7:])
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(inject(r.Context(), claims)))
	})
}

// RequireRole returns middleware that requires a specific role or higher.
func (m *AuthMiddleware) RequireRole(minRole Role) api.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := Role(api.GetUserRole(r.Context()))
			if userRole == "" {
				api.JSONError(w, http.StatusUnauthorized, "Authentication required", api.ErrCodeUnauthorized)
				return
			}
			if !HasMinimumRole(userRole, minRole) {
				api.JSONError(w, http.StatusForbidden, "Insufficient permissions", api.ErrCodeForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenant returns middleware that requires the path's tenant_id to
// match the principal's tenantId claim.
func (m *AuthMiddleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathTenant := r.PathValue("tenant_id")
		if pathTenant == "" {
			next.ServeHTTP(w, r)
			return
		}
		if api.GetTenantID(r.Context()) != pathTenant {
			api.JSONError(w, http.StatusForbidden, "Access denied to this tenant", api.ErrCodeForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsSuperAdmin checks if the current principal is a super admin.
func IsSuperAdmin(ctx context.Context) bool {
	return Role(api.GetUserRole(ctx)) == RoleSuperAdmin
}

// IsAdmin checks if the current principal is an admin or higher.
func IsAdmin(ctx context.Context) bool {
	return HasMinimumRole(Role(api.GetUserRole(ctx)), RoleAdmin)
}

// IsManager checks if the current principal is a manager or higher.
func IsManager(ctx context.Context) bool {
	return HasMinimumRole(Role(api.GetUserRole(ctx)), RoleManager)
}

