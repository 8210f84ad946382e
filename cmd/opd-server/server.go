package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/config"
	"github.com/opdcare/opd/internal/domain/billing"
	"github.com/opdcare/opd/internal/domain/patient"
	"github.com/opdcare/opd/internal/domain/pharmacy"
	"github.com/opdcare/opd/internal/domain/prescription"
	"github.com/opdcare/opd/internal/domain/sales"
	"github.com/opdcare/opd/internal/domain/visit"
	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/cache"
	"github.com/opdcare/opd/internal/platform/db"
	"github.com/opdcare/opd/internal/platform/metrics"
	"github.com/opdcare/opd/internal/platform/middleware"
	"github.com/opdcare/opd/internal/platform/websocket"
	"github.com/opdcare/opd/pkg/response"
)

// newServer builds the echo app with global middleware, the public probes
// and every domain route under /api/v1.
func newServer(cfg *config.Config, pool *pgxpool.Pool, store *cache.Store, m *metrics.Metrics, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(m))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Hospital-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	authCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(authCfg))
	} else {
		e.Use(auth.JWTMiddleware(authCfg))
	}
	e.Use(db.HospitalMiddleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	registerRoutes(e.Group("/api/v1"), cfg, pool, store, m, logger)
	return e
}

func registerRoutes(api *echo.Group, cfg *config.Config, pool *pgxpool.Pool, store *cache.Store, m *metrics.Metrics, logger zerolog.Logger) {
	patientSvc := patient.NewService(patient.NewRepo(pool), logger)
	patient.NewHandler(patientSvc).RegisterRoutes(api)

	visitSvc := visit.NewService(visit.NewRepo(pool), patientSvc, logger)
	visit.NewHandler(visitSvc).RegisterRoutes(api)

	pharmacyRepo := pharmacy.NewRepo(pool)
	hub := websocket.NewHub(logger)
	pharmacySvc := pharmacy.NewService(pharmacyRepo, store, cfg.StatsCacheTTL, m, logger).WithFeed(hub)
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(api)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(api)

	salesRepo := sales.NewRepo(pool)
	salesSvc := sales.NewService(salesRepo, patientSvc, logger)
	sales.NewHandler(salesSvc).RegisterRoutes(api)

	prescriptionRepo := prescription.NewRepo(pool)
	prescriptionSvc := prescription.NewService(prescriptionRepo, patientSvc, visitSvc, salesSvc, logger)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(api)

	billingSvc := billing.NewService(
		db.NewTxRunner(pool, cfg.BillingCommitTimeout),
		patientSvc, visitSvc,
		pharmacyRepo,
		prescriptionRepo,
		salesRepo,
		pharmacySvc,
		m,
		logger,
	)
	billing.NewHandler(billingSvc).RegisterRoutes(api)
}
