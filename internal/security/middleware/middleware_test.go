package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security/auth"
	"github.com/yourorg/rentledger/internal/security/ratelimit"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(id)
	})
}

func TestJWTMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("secret", "rentledger", time.Hour)
	h := JWTMiddleware(tm, quiet)(echoIdentity())

	token, _, err := tm.GenerateToken(domain.Identity{SubjectID: "t-1", Role: domain.RoleTenant})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tenant/overview", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.Identity{SubjectID: "t-1", Role: domain.RoleTenant}, got)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leases", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)

	req = httptest.NewRequest(http.MethodGet, "/api/leases", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, path := range []string{"/healthz", "/api/auth/login", "/api/payments/webhooks/daraja"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
	}
}

func TestRateLimitMiddlewareSTKBucket(t *testing.T) {
	limiter := ratelimit.NewLimiter(100, time.Minute)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter, RateLimitPolicy{STKPerMinute: 1}, quiet)(echoIdentity())

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, STKInitiatePath, nil)
		req = req.WithContext(WithIdentity(req.Context(), domain.Identity{SubjectID: "t-1", Role: domain.RoleTenant}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRateLimitMiddlewareSkipsWebhooks(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter, RateLimitPolicy{}, quiet)(echoIdentity())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/daraja", nil))
		require.Equal(t, http.StatusNoContent, rec.Code, "callback %d", i)
	}

	send := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRateLimitMiddlewareForwardedFor(t *testing.T) {
	_, proxies, err := net.ParseCIDR("10.0.0.0/8")
	require.NoError(t, err)

	login := func(h http.Handler, remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("untrusted peer cannot rotate the header", func(t *testing.T) {
		limiter := ratelimit.NewLimiter(1, time.Minute)
		defer limiter.Stop()
		h := RateLimitMiddleware(limiter, RateLimitPolicy{TrustedProxies: []*net.IPNet{proxies}}, quiet)(echoIdentity())

		assert.Equal(t, http.StatusNoContent, login(h, "203.0.113.5:4000", "198.51.100.1"))
		assert.Equal(t, http.StatusTooManyRequests, login(h, "203.0.113.5:4000", "198.51.100.2"))
	})

	t.Run("trusted proxy forwards the client address", func(t *testing.T) {
		limiter := ratelimit.NewLimiter(1, time.Minute)
		defer limiter.Stop()
		h := RateLimitMiddleware(limiter, RateLimitPolicy{TrustedProxies: []*net.IPNet{proxies}}, quiet)(echoIdentity())

		assert.Equal(t, http.StatusNoContent, login(h, "10.0.0.2:4000", "198.51.100.1"))
		assert.Equal(t, http.StatusNoContent, login(h, "10.0.0.2:4000", "198.51.100.2"))
		// A spoofed leftmost entry does not change the key.
		assert.Equal(t, http.StatusTooManyRequests, login(h, "10.0.0.2:4000", "1.2.3.4, 198.51.100.2"))
	})
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(quiet)(echoIdentity())

	req := httptest.NewRequest(http.MethodPost, "/api/leases", strings.NewReader("tenant_id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPatch, "/api/leases/1/end", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLimitBody(t *testing.T) {
	h := LimitBody(8)(echoIdentity())
	req := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(`{"amount":"10000"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestIDAndChain(t *testing.T) {
	h := Chain(echoIdentity(), RequestID(quiet), CORS([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/leases", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSplitResource(t *testing.T) {
	r, id := splitResource("/api/leases/abc/end")
	assert.Equal(t, "leases", r)
	assert.Equal(t, "abc", id)
	r, id = splitResource("/api/payments")
	assert.Equal(t, "payments", r)
	assert.Empty(t, id)
}
