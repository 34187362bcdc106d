// Package api assembles the HTTP router for the certbot-ui service.
package api

import (
	"net/http"

	mw "github.com/certops/certbot-ui/internal/api/middleware"
	"github.com/certops/certbot-ui/internal/api/response"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler        http.HandlerFunc
	CertbotHealthHandler http.HandlerFunc

	LoginHandler          http.HandlerFunc
	RegisterHandler       http.HandlerFunc
	ChangePasswordHandler http.HandlerFunc
	MeHandler             http.HandlerFunc

	ListCertificates    http.HandlerFunc
	GetCertificate      http.HandlerFunc
	DownloadHandler     http.HandlerFunc
	ObtainHandler       http.HandlerFunc
	RenewHandler        http.HandlerFunc
	RevokeHandler       http.HandlerFunc
	DeleteHandler       http.HandlerFunc
	LogsHandler         http.HandlerFunc
	DNSChallengeHandler http.HandlerFunc

	ListJobsHandler http.HandlerFunc
	GetJobHandler   http.HandlerFunc

	WebsocketHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health checks
	r.Get("/api/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/health/certbot", orNotImplemented(deps.CertbotHealthHandler))

	// Auth endpoints, rate limited per remote address
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.LimitAuth)

		r.Post("/api/auth/login", orNotImplemented(deps.LoginHandler))
		r.Post("/api/auth/register", orNotImplemented(deps.RegisterHandler))
	})

	// Websocket: authenticates itself from the token query parameter, so it
	// sits outside the bearer-token group.
	r.Get("/ws", orNotImplemented(deps.WebsocketHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/auth/me", orNotImplemented(deps.MeHandler))
		r.Post("/api/auth/change-password", orNotImplemented(deps.ChangePasswordHandler))

		r.Get("/api/certificates", orNotImplemented(deps.ListCertificates))
		r.Post("/api/certificates", orNotImplemented(deps.ObtainHandler))
		r.Post("/api/certificates/renew", orNotImplemented(deps.RenewHandler))
		r.Post("/api/certificates/revoke", orNotImplemented(deps.RevokeHandler))
		r.Get("/api/certificates/logs", orNotImplemented(deps.LogsHandler))
		r.Get("/api/certificates/dns-challenge", orNotImplemented(deps.DNSChallengeHandler))

		r.Get("/api/certificates/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/certificates/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))

		r.Get("/api/certificates/{certName}", orNotImplemented(deps.GetCertificate))
		r.Get("/api/certificates/{certName}/download", orNotImplemented(deps.DownloadHandler))
		r.Delete("/api/certificates/{certName}", orNotImplemented(deps.DeleteHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
