package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/infra/config"
	"github.com/osetrov/adminpanel-auth/internal/infra/security"
	"github.com/osetrov/adminpanel-auth/internal/usecase"
)

func newTestEngine(t *testing.T) http.Handler {
	t.Helper()

	signer, err := security.NewJWTSigner(config.JWTSettings{
		SigningKey: "0123456789abcdef0123456789abcdef",
		Issuer:     "adminpanel-auth-test",
	})
	require.NoError(t, err)

	log := zap.NewNop()
	lockouts := usecase.NewLockoutService(nil, nil, config.LockoutSettings{Enabled: false}, log)
	auth := usecase.NewAuthService(nil, nil, lockouts, signer, nil, log)

	return Register(Dependencies{
		Config:   &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:   log,
		Services: ServiceSet{Auth: auth, Lockouts: lockouts},
	})
}

func TestHealthEndpoints(t *testing.T) {
	engine := newTestEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newTestEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	engine := newTestEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="adminpanel"`, rec.Header().Get("WWW-Authenticate"))

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/lockouts/acc-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	engine := newTestEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
