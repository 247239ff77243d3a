package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/achingachris/mya-server/internal/clock"
)

const maxBodyBytes = 1 << 20

// Services bundles what the router dispatches to.
type Services struct {
	Checkout  CheckoutInitiator
	Webhooks  WebhookHandler
	Callbacks CallbackVerifier
	Catalog   CatalogReader
	Admin     CatalogAdmin
	Charges   ChargeLookup
	Reports   ChargeReporter
	Store     Pinger
}

type RouterConfig struct {
	Logger      *slog.Logger
	Clock       clock.Clock
	CORSOrigins []string
	JWTSecret   string
	// CallbackResultURL is where browsers land after payment; empty keeps the
	// callback JSON only.
	CallbackResultURL string
	// Limiter throttles the public checkout endpoints when set.
	Limiter *IPRateLimiter
}

func NewRouter(cfg RouterConfig, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(MaxBodySize(maxBodyBytes))

	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HealthHandler(svc.Store))

	r.Route("/api/v2", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Middleware)
			}
			r.Post("/voting/vote/initiate/{nomineeID}", HandleInitiateVote(svc.Checkout))
			r.Post("/tickets/purchase/{ticketTypeID}", HandlePurchaseTicket(svc.Checkout))
		})

		r.Post("/paystack-webhook", HandlePaystackWebhook(svc.Webhooks))
		r.Get("/payments/callback", HandlePaymentCallback(svc.Callbacks, cfg.CallbackResultURL))
		r.Get("/charges/{reference}", HandleGetCharge(svc.Charges))

		r.Get("/voting/categories", HandleListCategories(svc.Catalog))
		r.Get("/voting/nominees", HandleListNominees(svc.Catalog))
		r.Get("/tickets/types", HandleListTicketTypes(svc.Catalog))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin(cfg.JWTSecret))
		r.Get("/charges", HandleAdminCharges(svc.Reports))
		r.Get("/charges/export", HandleAdminExportCharges(svc.Reports, cfg.Clock))
		r.Get("/summary", HandleAdminSummary(svc.Reports))
		r.Handle("/categories", HandleAdminCategories(svc.Admin))
		r.Handle("/nominees", HandleAdminNominees(svc.Admin))
		r.Handle("/ticket-types", HandleAdminTicketTypes(svc.Admin))
	})

	return r
}
