package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/northcart/storefront-backend/api/responses"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
)

// BearerToken guards internal routes with a shared-secret bearer token.
func BearerToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "internal endpoint disabled"))
				return
			}
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
