package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubVerifier struct {
	claims auth.Claims
	err    error
	seen   string
}

func (s *stubVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	s.seen = token
	return s.claims, s.err
}

func captureClaims(got *auth.Claims, found *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *found = GetClaims(r.Context())
	})
}

func TestAuthContext_DevHeaders(t *testing.T) {
	var got auth.Claims
	var found bool
	h := AuthContext(nil)(captureClaims(&got, &found))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "u-1")
	req.Header.Set("X-Debug-User-Role", "admin")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, found)
	assert.Equal(t, "u-1", got.UserID)
	assert.True(t, got.IsAdmin())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "u-2")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, found)
	assert.Equal(t, auth.RoleUser, got.Role)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, found)
}

func TestAuthContext_VerifierMode(t *testing.T) {
	v := &stubVerifier{claims: auth.Claims{UserID: "u-9"}}
	var got auth.Claims
	var found bool
	h := AuthContext(v)(captureClaims(&got, &found))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, found)
	assert.Equal(t, "tok-1", v.seen)
	assert.Equal(t, "u-9", got.UserID)
	assert.Equal(t, auth.RoleUser, got.Role)

	// en modo verifier se ignoran los headers de debug
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "intruder")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, found)

	v.err = errors.New("bad token")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-2")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, found)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("Bearer"))
	assert.Equal(t, "", bearerToken(""))
}

func TestRecover_LogsAndReturns500(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core))

	h := Recover(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core))

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	req := httptest.NewRequest(http.MethodPost, "/transfer-requests/t-1/confirm", nil)
	h.ServeHTTP(httptest.NewRecorder(), withClaimsRequest(req, auth.Claims{UserID: "u-1"}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusConflict), ctx["status"])
	assert.Equal(t, "u-1", ctx["user_id"])
}

func withClaimsRequest(r *http.Request, c auth.Claims) *http.Request {
	return r.WithContext(WithClaims(r.Context(), c))
}
