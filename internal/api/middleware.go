package api

import (
	"fmt"
	"net/http"
)

// recoverPanic answers a panicking handler with a 500 and closes the
// connection. http.ErrAbortHandler is passed through.
func (s *KetchupApp) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			err, ok := rec.(error)
			if ok {
				err = fmt.Errorf("panic: %w", err)
			} else {
				err = fmt.Errorf("panic: %v", rec)
			}

			w.Header().Set("Connection", "close")
			s.writeError(w, newApiError(http.StatusInternalServerError, err))
		}()

		next.ServeHTTP(w, r)
	})
}
