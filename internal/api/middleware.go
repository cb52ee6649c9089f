package api

import (
	"log"
	"net/http"
	"runtime/debug"
)

// JSONRecoverer turns a panic in a handler into a 500 JSON error and logs
// the stack trace.
func JSONRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("level=error component=api msg=\"panic recovered\" method=%s path=%s panic=%v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
			writeError(w, http.StatusInternalServerError, msgInternalError)
		}()

		next.ServeHTTP(w, r)
	})
}
