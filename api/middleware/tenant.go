package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/alimansour/cardvault-backend/api/responses"
	pkgerrors "github.com/alimansour/cardvault-backend/pkg/errors"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

const (
	tenantIDHeader = "X-Tenant-Id"
	userIDHeader   = "X-User-Id"
)

// TenantAuth resolves the tenant and acting user from the gateway-injected
// headers. Every /api/v1 route is tenant-scoped, so a missing or malformed
// tenant header short-circuits the request.
func TenantAuth(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawTenant := strings.TrimSpace(r.Header.Get(tenantIDHeader))
			if rawTenant == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant header required"))
				return
			}
			tenantID, err := uuid.Parse(rawTenant)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid tenant header"))
				return
			}

			ctx := WithTenantID(r.Context(), tenantID.String())
			if logg != nil {
				ctx = logg.WithTenantID(ctx, tenantID.String())
			}

			if rawUser := strings.TrimSpace(r.Header.Get(userIDHeader)); rawUser != "" {
				userID, err := uuid.Parse(rawUser)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user header"))
					return
				}
				ctx = WithUserID(ctx, userID.String())
				if logg != nil {
					ctx = logg.WithUserID(ctx, userID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
