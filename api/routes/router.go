package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lukasortiz/taskpay-backend/api/controllers"
	webhookcontrollers "github.com/lukasortiz/taskpay-backend/api/controllers/webhooks"
	"github.com/lukasortiz/taskpay-backend/api/middleware"
	checkoutsvc "github.com/lukasortiz/taskpay-backend/internal/checkout"
	"github.com/lukasortiz/taskpay-backend/internal/finance"
	webhooksvc "github.com/lukasortiz/taskpay-backend/internal/webhooks"
	"github.com/lukasortiz/taskpay-backend/pkg/config"
	"github.com/lukasortiz/taskpay-backend/pkg/db"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
	"github.com/lukasortiz/taskpay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	checkoutService checkoutsvc.Service,
	webhookQueue webhooksvc.Queue,
	financeService finance.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", controllers.Checkout(checkoutService, logg))

		r.Post("/webhooks/{provider}", webhookcontrollers.Ingest(webhookQueue, cfg.Webhooks, logg))

		r.Route("/finance", func(r chi.Router) {
			r.Get("/overview", controllers.FinanceOverview(financeService, logg))
			r.Get("/report", controllers.FinanceReport(financeService, logg))
			r.Get("/alerts", controllers.FinanceAlerts(financeService, logg))
			r.Get("/orders/{orderId}/timeline", controllers.OrderTimeline(financeService, logg))
		})
	})

	return r
}
