package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velopay/payswitch-backend/api/controllers"
	"github.com/velopay/payswitch-backend/api/middleware"
	"github.com/velopay/payswitch-backend/internal/mandates"
	"github.com/velopay/payswitch-backend/internal/payments"
	"github.com/velopay/payswitch-backend/internal/profiles"
	"github.com/velopay/payswitch-backend/internal/refunds"
	"github.com/velopay/payswitch-backend/internal/registry"
	"github.com/velopay/payswitch-backend/pkg/config"
	"github.com/velopay/payswitch-backend/pkg/db"
	"github.com/velopay/payswitch-backend/pkg/logger"
	pkgredis "github.com/velopay/payswitch-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *pkgredis.Client
	Gatherer   prometheus.Gatherer

	Payments *payments.Service
	Refunds  *refunds.Service
	Mandates *mandates.Service
	Registry *registry.Service
	Profiles *profiles.Service
}

// NewRouter assembles the full route tree. Health, metrics and the
// authentication callback are open; everything under /api/v1 requires the
// api-key header.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/authentication/{attemptId}", controllers.AuthenticationCallback(p.Payments, p.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.APIKeyAuth(p.Profiles, p.Logger),
			middleware.Idempotency(p.Redis, p.Logger),
		)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.CreatePayment(p.Payments, p.Logger))
			r.Get("/{paymentId}", controllers.GetPayment(p.Payments, p.Logger))
			r.With(middleware.ConfirmRateLimit(p.Config.RateLimit, p.Redis, p.Logger)).
				Post("/{paymentId}/confirm", controllers.ConfirmPayment(p.Payments, p.Logger))
			r.Post("/{paymentId}/cancel", controllers.CancelPayment(p.Payments, p.Logger))
			r.Post("/{paymentId}/refunds", controllers.CreateRefund(p.Refunds, p.Logger))
			r.Get("/{paymentId}/refunds", controllers.ListPaymentRefunds(p.Refunds, p.Logger))
		})

		r.Get("/refunds/{refundId}", controllers.GetRefund(p.Refunds, p.Logger))

		r.Route("/mandates", func(r chi.Router) {
			r.Get("/", controllers.ListMandates(p.Mandates, p.Logger))
			r.Get("/{mandateId}", controllers.GetMandate(p.Mandates, p.Logger))
			r.Post("/{mandateId}/revoke", controllers.RevokeMandate(p.Mandates, p.DB, p.Logger))
		})

		r.Get("/customers/{customerId}/mandates", controllers.ListCustomerMandates(p.Mandates, p.Logger))

		r.Route("/account/{accountId}", func(r chi.Router) {
			r.Post("/connectors", controllers.ActivateConnector(p.Registry, p.Logger))
			r.Get("/connectors", controllers.ListConnectors(p.Registry, p.Logger))
			r.Post("/connectors/{configId}/disable", controllers.DisableConnector(p.Registry, p.Logger))
			r.Post("/business_profile/{profileId}", controllers.UpsertBusinessProfile(p.Profiles, p.Logger))
			r.Get("/business_profile/{profileId}", controllers.GetBusinessProfile(p.Profiles, p.Logger))
		})
	})

	return r
}
