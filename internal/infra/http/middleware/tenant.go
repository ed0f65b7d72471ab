package middleware

import (
	"context"
	"net/http"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/apierror"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// TenantHeader carries the caller's tenant identity on every stateless
// operation.
const TenantHeader = "X-User-ID"

// TenantIDKey is the context key carrying the tenant id.
const TenantIDKey = logger.ContextKeyTenantID

// RequireTenant extracts the tenant id from the X-User-ID header and adds
// it to the request context. A missing or empty header is rejected before
// the handler runs.
func RequireTenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get(TenantHeader)
			if tenantID == "" {
				apierror.TenantMissing().WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantID extracts the tenant id from context.
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(TenantIDKey).(string); ok {
		return id
	}
	return ""
}
