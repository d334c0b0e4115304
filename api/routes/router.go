package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maisonnoire/trufflehouse-backend/api/controllers"
	"github.com/maisonnoire/trufflehouse-backend/api/middleware"
	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/internal/catalog"
	"github.com/maisonnoire/trufflehouse-backend/internal/passport"
	"github.com/maisonnoire/trufflehouse-backend/internal/serial"
	"github.com/maisonnoire/trufflehouse-backend/internal/users"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	pkgredis "github.com/maisonnoire/trufflehouse-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Cfg              *config.Config
	Logg             *logger.Logger
	DB               db.Pinger
	Redis            *pkgredis.Client
	Registry         *prometheus.Registry
	UserService      *users.Service
	CatalogService   *catalog.Service
	Engine           *serial.Engine
	AuditRecorder    *audit.Recorder
	PassportResolver *passport.Resolver
}

// NewRouter assembles the public passport surface and the authenticated
// admin API.
func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Cfg, deps.Logg

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		var redisPinger pkgredis.Pinger
		if deps.Redis != nil {
			redisPinger = deps.Redis
		}
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/passport/{itemUID}", controllers.ServePassport(deps.PassportResolver, logg))

	r.Post("/api/admin/v1/auth/login", controllers.AuthLogin(deps.UserService, logg))

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(deps.CatalogService, logg))
			r.Post("/", controllers.AdminCreateProduct(deps.CatalogService, logg))
			r.Put("/{productID}", controllers.AdminUpdateProduct(deps.CatalogService, logg))
			r.Delete("/{productID}", controllers.AdminDeleteProduct(deps.CatalogService, logg))
			r.Post("/{productID}/variants", controllers.AdminCreateVariant(deps.CatalogService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/serialized/receive", controllers.ReceiveSerialized(deps.Engine, logg))
			r.Get("/serialized/items", controllers.ListSerializedItems(deps.Engine, logg))
			r.Get("/serialized/items/{itemUID}", controllers.GetSerializedItem(deps.Engine, logg))
			r.Put("/serialized/items/{itemUID}/status", controllers.SetItemStatus(deps.Engine, logg))
			r.Post("/stock/adjust", controllers.AdjustStock(deps.Engine, logg))
		})

		r.Get("/audit", controllers.ListAuditEntries(deps.AuditRecorder, logg))
	})

	return r
}
