// middleware/sizelimit.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/contactrelay/httputil"
)

// LimitBodySize caps the request body at maxBytes. A request that declares
// a larger Content-Length is rejected with 413 before the handler runs;
// chunked bodies are cut off by http.MaxBytesReader as they are read.
// maxBytes <= 0 disables the limit.
func LimitBodySize(maxBytes int64) func(next http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteStatus(w, http.StatusRequestEntityTooLarge, httputil.ErrBodyTooLarge.Error())
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
