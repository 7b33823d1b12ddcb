package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/retail-bank/internal/handler"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

// Recovery turns a panicking handler into a 500. Ledger writes that
// already committed stay committed; the client sees an internal error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logging.FromContext(r.Context()).Error("panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
