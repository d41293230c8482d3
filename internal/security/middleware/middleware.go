package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security/audit"
	"github.com/yourorg/rentledger/internal/security/auth"
	"github.com/yourorg/rentledger/internal/security/ratelimit"
)

type IdentityContextKey struct{}

// STKInitiatePath gets the strict rate limit.
const STKInitiatePath = "/api/payments/mpesa/initiate"

// WebhookPrefix is where payment providers deliver callbacks. Callbacks are
// not rate limited.
const WebhookPrefix = "/api/payments/webhooks/"

// IsPublic reports whether a path is served without a bearer token.
func IsPublic(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return strings.HasPrefix(path, "/api/auth/") ||
		strings.HasPrefix(path, WebhookPrefix)
}

// WithIdentity stores the authenticated identity on the context.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey{}, id)
}

// IdentityFromContext returns the identity set by JWTMiddleware.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey{}).(domain.Identity)
	return id, ok
}

func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid auth")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				log.Info("rejected token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
		})
	}
}

// RateLimitPolicy configures RateLimitMiddleware.
type RateLimitPolicy struct {
	// STKPerMinute is the per-caller limit on STK initiation; 0 disables it.
	STKPerMinute int
	// TrustedProxies are the peers whose X-Forwarded-For header is honoured.
	TrustedProxies []*net.IPNet
}

// RateLimitMiddleware limits authenticated callers by subject and anonymous
// callers by client address. STK initiation has its own tighter bucket.
func RateLimitMiddleware(limiter *ratelimit.Limiter, policy RateLimitPolicy, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.URL.Path, WebhookPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + clientIP(r, policy.TrustedProxies)
			if id, ok := IdentityFromContext(r.Context()); ok {
				key = string(id.Role) + ":" + id.SubjectID
			}

			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
				return
			}
			if r.Method == http.MethodPost && r.URL.Path == STKInitiatePath && policy.STKPerMinute > 0 &&
				!limiter.AllowStrict(key, policy.STKPerMinute, time.Minute) {
				log.Warn("stk rate limit exceeded", slog.String("key", key))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many payment prompts, try again shortly")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records every mutating API call with its outcome.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodOptions || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			actor, ok := IdentityFromContext(r.Context())
			if !ok {
				actor = domain.Identity{SubjectID: "anonymous"}
			}
			status := "success"
			if sw.status >= 400 {
				status = "failed"
			}
			resource, resourceID := splitResource(r.URL.Path)
			auditLog.LogAction(r.Context(), actor, r.Method, resource, resourceID, status, http.StatusText(sw.status))
		})
	}
}

// RequestID attaches a request id to the context and response, and logs
// each completed request.
func RequestID(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" || len(reqID) > 64 {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(audit.WithRequestID(r.Context(), reqID)))

			log.Info("request completed",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration_ms", time.Since(start)),
			)
		})
	}
}

// CORS answers preflight requests and echoes allowed origins.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if len(allowed) > 0 {
				w.Header().Set("Access-Control-Allow-Origin", allowed[0])
			}
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one listed is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// clientIP is the peer address unless the peer is a trusted proxy. Behind
// one, X-Forwarded-For is read right to left and the first hop that is not
// itself a trusted proxy wins.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" || net.ParseIP(hop) == nil {
			break
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
		host = hop
	}
	return host
}

func isTrusted(addr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// splitResource turns /api/leases/123/end into ("leases", "123").
func splitResource(path string) (string, string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api"), "/"), "/")
	resource, id := parts[0], ""
	if len(parts) > 1 {
		id = parts[1]
	}
	return resource, id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
