package middleware

import (
	"net/http"

	"dental-inspections/internal/ports/capabilities"
)

// RequireCapability corta con 401 sin claims y 403 si el resolver no concede la capability.
// resolver nil = todo permitido (modo dev sin resolver).
func RequireCapability(resolver capabilities.CapabilitiesResolver, c capabilities.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := RequireClaims(w, r)
			if !ok {
				return
			}
			if resolver == nil {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := resolver.HasFeature(r.Context(), capabilities.CapabilityCheck{
				UserID:     claims.UserID,
				Role:       claims.Role,
				Capability: c,
			})
			if err != nil || !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
