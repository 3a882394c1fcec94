package routes

import (
	"net/http"

	"github.com/basylab/balug/internal/app"
	"github.com/basylab/balug/internal/handler"
	"github.com/basylab/balug/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	reset := handler.NewPasswordResetHandler(app.PasswordResetService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)

	// Password reset (rate limited per client IP)
	rateLimited := middleware.RateLimitAuth(app.AuthRateLimiter)

	mux.Handle("POST /auth/password-reset/validate-email", rateLimited(http.HandlerFunc(reset.ValidateEmail)))
	mux.Handle("POST /auth/password-reset/status", rateLimited(http.HandlerFunc(reset.Status)))
	mux.Handle("POST /auth/password-reset/resend", rateLimited(http.HandlerFunc(reset.Resend)))
	mux.Handle("POST /auth/password-reset/verify", rateLimited(http.HandlerFunc(reset.Verify)))
	mux.Handle("POST /auth/password-reset/confirm", rateLimited(http.HandlerFunc(reset.Confirm)))

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestID, // Must run before logging so every log line carries the ID
		middleware.RequestLogging,
		middleware.SecurityHeaders,
		middleware.RequireJSON, // CSRF protection for state-changing requests
	)

	return handler
}
