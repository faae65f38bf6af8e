package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radarprecios/radarprecios-backend/api/controllers"
	"github.com/radarprecios/radarprecios-backend/api/middleware"
	"github.com/radarprecios/radarprecios-backend/internal/agendas"
	"github.com/radarprecios/radarprecios-backend/internal/auth"
	"github.com/radarprecios/radarprecios-backend/internal/checkins"
	"github.com/radarprecios/radarprecios-backend/internal/prices"
	"github.com/radarprecios/radarprecios-backend/internal/products"
	"github.com/radarprecios/radarprecios-backend/internal/users"
	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/metrics"
	pkgredis "github.com/radarprecios/radarprecios-backend/pkg/redis"
	"github.com/radarprecios/radarprecios-backend/pkg/storage"
)

// Services bundles the domain services mounted by the router.
type Services struct {
	Auth     auth.Service
	Users    users.Service
	Prices   prices.Service
	Products products.Service
	CheckIns checkins.Service
	Agendas  agendas.Service
}

// Infra carries the clients the router probes or serves from directly.
// Redis, Photos and Gatherer may be nil.
type Infra struct {
	DB       controllers.Pinger
	Redis    *pkgredis.Client
	Photos   storage.Store
	HTTP     *metrics.HTTP
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, infra.HTTP),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Debug(cfg.App.IsDev()),
	)

	// A nil *Client must not reach the middleware as a non-nil interface.
	var (
		idempotencyStore pkgredis.IdempotencyStore
		rateStore        pkgredis.RateLimitStore
		redisPinger      controllers.Pinger
	)
	if infra.Redis != nil {
		idempotencyStore = infra.Redis
		rateStore = infra.Redis
		redisPinger = infra.Redis
	}

	readiness := map[string]controllers.Pinger{
		"database": infra.DB,
		"redis":    redisPinger,
	}
	if pinger, ok := infra.Photos.(controllers.Pinger); ok {
		readiness["storage"] = pinger
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if infra.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	if disk, ok := infra.Photos.(*storage.Disk); ok {
		prefix := "/" + strings.Trim(cfg.Storage.PublicPrefix, "/")
		fs := http.StripPrefix(prefix, http.FileServer(http.Dir(disk.Root())))
		r.Get(prefix+"/*", fs.ServeHTTP)
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Storage.MaxUploadBytes(), logg))

		adminOnly := middleware.RequirePermission(enums.PermissionAdmin, logg)
		supervisors := middleware.RequirePermission(enums.PermissionSupervisor, logg)

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.CurrentUser(svc.Users, logg))
			r.With(adminOnly).Post("/", controllers.CreateUser(svc.Users, logg))
		})

		r.Route("/prices", func(r chi.Router) {
			r.Post("/", controllers.RecordPrice(svc.Prices, cfg.Storage.MaxUploadBytes(), logg))
			r.Get("/history", controllers.PriceHistory(svc.Prices, logg))
			r.Get("/current", controllers.CurrentPrices(svc.Prices, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(svc.Products, logg))
			r.Get("/{id}", controllers.GetProduct(svc.Products, logg))
			r.With(adminOnly).Put("/{id}/validity", controllers.SetProductValidity(svc.Products, logg))
		})

		r.Route("/checkins", func(r chi.Router) {
			r.Post("/", controllers.CheckIn(svc.CheckIns, logg))
			r.Get("/active", controllers.ActiveCheckIn(svc.CheckIns, logg))
			r.Put("/checkout", controllers.CheckOut(svc.CheckIns, logg))
			r.Put("/{id}/checkout", controllers.CheckOut(svc.CheckIns, logg))
		})

		r.Route("/agendas", func(r chi.Router) {
			r.Get("/", controllers.ListAgenda(svc.Agendas, logg))
			r.Get("/today", controllers.AgendaToday(svc.Agendas, logg))
			r.Get("/week", controllers.AgendaWeek(svc.Agendas, logg))
			r.Get("/{id}", controllers.GetAgenda(svc.Agendas, logg))
			r.Put("/{id}/justify", controllers.JustifyAgenda(svc.Agendas, logg))

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Post("/", controllers.CreateAgenda(svc.Agendas, logg))
				r.Post("/bulk", controllers.BulkCreateAgenda(svc.Agendas, logg))
				r.Put("/{id}", controllers.UpdateAgenda(svc.Agendas, logg))
				r.Delete("/{id}", controllers.DeleteAgenda(svc.Agendas, logg))
			})
		})
	})

	return r
}
