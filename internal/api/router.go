package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/handlers"
	custommiddleware "github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/middleware"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// Services holds everything the router dispatches to.
// Jobs is optional and may be nil when the scheduler is disabled.
type Services struct {
	System       *service.SystemService
	Transactions *service.TransactionService
	Valuation    *service.ValuationService
	ManualPrices *service.ManualPriceService
	Resolver     *service.PriceResolver
	Reconciler   *service.BatchReconciler
	Cleanup      *service.CleanupService
	Jobs         handlers.JobLister
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System, svc.Jobs)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
			r.Get("/status", systemHandler.Status)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(custommiddleware.ValidateUserID)

			transactionHandler := handlers.NewTransactionHandler(svc.Transactions)
			r.Get("/transactions", transactionHandler.Transactions)
			r.Post("/transactions", transactionHandler.CreateTransaction)
			r.Get("/positions", transactionHandler.Positions)

			valuationHandler := handlers.NewValuationHandler(svc.Valuation)
			r.Get("/valuation", valuationHandler.Valuation)

			manualPriceHandler := handlers.NewManualPriceHandler(svc.ManualPrices)
			r.Get("/prices", manualPriceHandler.Overrides)
			r.Put("/prices/{ticker}", manualPriceHandler.SetOverride)
			r.Delete("/prices/{ticker}", manualPriceHandler.RemoveOverride)
		})

		priceHandler := handlers.NewPriceHandler(svc.Resolver)
		r.Get("/prices/{ticker}", priceHandler.Price)

		r.Route("/batch", func(r chi.Router) {
			batchHandler := handlers.NewBatchHandler(svc.Reconciler, svc.Cleanup, cfg.Batch.DailyStaleHours)
			r.Post("/reconcile", batchHandler.Reconcile)
			r.Post("/cleanup", batchHandler.Cleanup)
			r.Get("/jobs", batchHandler.Jobs)
			r.With(custommiddleware.ValidateUUIDParam("jobID")).Get("/jobs/{jobID}", batchHandler.Job)
		})
	})

	return r
}
