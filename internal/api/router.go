package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/orgdesk/admin-api/docs"
	"github.com/orgdesk/admin-api/internal/api/handler"
	"github.com/orgdesk/admin-api/internal/api/middleware"
	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
	"github.com/orgdesk/admin-api/internal/infrastructure/http/handlers"
)

// Deps holds everything the router wires into handlers and middleware.
type Deps struct {
	Log          zerolog.Logger
	ExposeErrors bool

	Auth     ports.AuthService
	Entities ports.EntityService
	// Catalog lists the entities to mount; defaults to domain.Catalog.
	Catalog []*domain.Entity

	StoreName string
	Store     handlers.Pinger
	Redis     *redis.Client // optional

	LoginRate  float64
	LoginBurst int

	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	if d.Catalog == nil {
		d.Catalog = domain.Catalog
	}
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, d.ExposeErrors)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: d.Registerer,
	}))

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.StoreName, d.Store, d.Redis)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth)
	throttle := middleware.RateLimit(d.LoginRate, d.LoginBurst)

	e.POST("/user/login", authHandler.Login, throttle)
	e.POST("/admin/login", authHandler.AdminLogin, throttle)
	e.POST("/user/refresh", authHandler.Refresh, throttle)

	// --- Entity routes ---
	gates := map[domain.Gate][]echo.MiddlewareFunc{
		domain.GatePrincipal: {middleware.Auth(d.Auth), middleware.RequirePrincipal(d.Auth)},
		domain.GateAdmin:     {middleware.Auth(d.Auth), middleware.RequirePrincipal(d.Auth), middleware.RequireAdmin(d.Auth)},
	}
	for _, ent := range d.Catalog {
		mountEntity(e, ent, handler.NewEntityHandler(ent, d.Entities), gates)
	}

	return e
}

// mountEntity registers create/get/search/select/update and the extra views
// of one entity under /<name>.
func mountEntity(e *echo.Echo, ent *domain.Entity, h *handler.EntityHandler, gates map[domain.Gate][]echo.MiddlewareFunc) {
	base := "/" + ent.Name
	reads := []string{http.MethodGet, http.MethodPost}

	e.POST(base+"/create", h.Create, gates[ent.Gate(domain.OpCreate)]...)
	e.POST(base+"/update", h.Update, gates[ent.Gate(domain.OpUpdate)]...)
	e.Match(reads, base+"/get", h.Get, gates[ent.Gate(domain.OpGet)]...)
	e.Match(reads, base+"/search", h.Search, gates[ent.Gate(domain.OpSearch)]...)
	e.Match(reads, base+"/select", h.Select, gates[ent.Gate(domain.OpSelect)]...)

	for _, v := range ent.Views {
		op := domain.OpGet
		if v.Search {
			op = domain.OpSearch
		}
		e.Match(reads, base+"/"+v.Name, h.View(v), gates[ent.Gate(op)]...)
	}
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
