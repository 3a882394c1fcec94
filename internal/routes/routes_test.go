package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basylab/balug/internal/app"
	"github.com/basylab/balug/internal/config"
	"github.com/basylab/balug/internal/middleware"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(&config.Config{
		AppName:                      "Balug",
		AppEnv:                       "development",
		DBDriver:                     "sqlite",
		DBConnection:                 ":memory:",
		PasswordResetCodeTTL:         5 * time.Minute,
		PasswordResetCodeDigits:      6,
		PasswordResetResendCooldown:  time.Minute,
		PasswordResetMaxResends:      5,
		PasswordResetBlockDuration:   30 * time.Minute,
		PasswordResetMaxCodeAttempts: 5,
		PasswordResetThrottleDelays:  []time.Duration{0, 5 * time.Second},
		PasswordResetBcryptCost:      4,
		RateLimitAuthRPS:             0.1,
		RateLimitAuthBurst:           2,
	}, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestHealthz(t *testing.T) {
	h := SetupRoutes(newTestApp(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestFormPostsAreRejected(t *testing.T) {
	h := SetupRoutes(newTestApp(t))

	req := httptest.NewRequest(http.MethodPost, "/auth/password-reset/status", strings.NewReader("email=ada%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestPasswordResetRoutes(t *testing.T) {
	h := SetupRoutes(newTestApp(t))

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.RemoteAddr = "192.0.2.10:1234"
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/auth/password-reset/status", `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCOUNT_NOT_FOUND")

	rec = post("/auth/password-reset/verify", `{"email":"nobody@example.com","code":"123456"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// burst of 2 is spent
	rec = post("/auth/password-reset/resend", `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestUnknownMethod(t *testing.T) {
	h := SetupRoutes(newTestApp(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/password-reset/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
