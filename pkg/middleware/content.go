package middleware

import (
	"mime"
	"net/http"

	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/httputil"
)

// NoStore marks every response as private and uncacheable. Order documents carry
// addresses and payment state.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects POST and PUT requests that carry a body in anything but JSON.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && r.ContentLength != 0 {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				httputil.WriteError(w, r, apperrors.New(
					"UNSUPPORTED_MEDIA_TYPE",
					"Content-Type must be application/json",
					http.StatusUnsupportedMediaType,
					apperrors.ErrInvalidInput,
				), nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
