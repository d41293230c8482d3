package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// DefaultMaxBodyBytes caps request bodies. Daraja callbacks are well under it.
const DefaultMaxBodyBytes = 1 << 20

// ValidateJSONContentType middleware ensures POST/PUT/PATCH requests have JSON content type
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			// Bodiless actions such as PATCH /api/leases/{id}/end
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
					slog.String("method", r.Method),
				)
				writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitBody rejects bodies larger than maxBytes once they are read.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// SanitizeInputs rejects markup characters in query params and traversal
// patterns in the path.
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dangerousChars := []string{"<", ">", "\"", "'"}
			for key, values := range r.URL.Query() {
				for _, val := range values {
					for _, char := range dangerousChars {
						if strings.Contains(val, char) {
							log.Warn("suspicious input detected",
								slog.String("path", r.URL.Path),
								slog.String("param", key),
								slog.String("pattern", char),
							)
							writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid characters in query parameter "+key)
							return
						}
					}
				}
			}

			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.Warn("suspicious path pattern detected",
					slog.String("path", r.URL.Path),
				)
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid path")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
