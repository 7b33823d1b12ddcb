package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/josh-kwaku/retail-bank/internal/auth"
	"github.com/josh-kwaku/retail-bank/internal/handler"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

// Operator admits requests carrying a valid bearer token with the
// operator role.
func Operator(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrUnauthorized, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.RequireOperator(token, secret)
			if errors.Is(err, auth.ErrForbidden) {
				logging.FromContext(r.Context()).Warn("operator role missing", "subject", claims.Subject)
				handler.RespondAppError(w, handler.ErrForbidden, nil)
				return
			}
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithSubject(r.Context(), claims.Subject)
			ctx, _ = logging.With(ctx, "operator", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
