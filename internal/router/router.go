package router

import (
	"database/sql"
	"net/http"

	_ "pet-rehoming/docs"
	"pet-rehoming/internal/adapters/capabilities/static"
	"pet-rehoming/internal/adapters/notifications/logsink"
	mem "pet-rehoming/internal/adapters/storage/memory"
	pg "pet-rehoming/internal/adapters/storage/postgres"
	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/domain/events"
	"pet-rehoming/internal/domain/helpers"
	"pet-rehoming/internal/domain/pets"
	"pet-rehoming/internal/domain/placement"
	"pet-rehoming/internal/middleware"
	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/platform/metrics"
	"pet-rehoming/internal/ports/auth"
	capport "pet-rehoming/internal/ports/capabilities"
	"pet-rehoming/internal/ports/notifications"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres (ya migrada). Si no, in-memory.
	DB *sql.DB

	Logger   logger.Logger
	Registry capport.Registry   // nil => registro estático
	Sink     notifications.Sink // nil => log
	Metrics  *metrics.Metrics

	// MetricsHandler se monta en /metrics si no es nil (promhttp).
	MetricsHandler http.Handler

	PlacementOptions []placement.Option
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recover(log))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		petRepo    pets.Repository
		eventRepo  events.Repository
		helperRepo helpers.Repository
		tx         placement.Transactor
	)

	if db := opts.DB; db != nil {
		petRepo = pg.NewPetsRepo(db)
		eventRepo = pg.NewEventsRepo(db)
		helperRepo = pg.NewHelpersRepo(db)
		tx = pg.NewPlacementStore(db)
	} else {
		memDB := mem.NewDatabase()
		petRepo = mem.NewPetRepo(memDB)
		eventRepo = mem.NewEventRepo(memDB)
		helperRepo = mem.NewHelperRepo(memDB)
		tx = mem.NewPlacementStore(memDB)
	}

	registry := opts.Registry
	if registry == nil {
		registry = static.Default()
	}
	checker := capabilities.NewChecker(registry)

	sink := opts.Sink
	if sink == nil {
		sink = logsink.New(log)
	}

	// Services por módulo
	placementOpts := append([]placement.Option{
		placement.WithLogger(log),
		placement.WithMetrics(opts.Metrics),
	}, opts.PlacementOptions...)
	placementSvc := placement.NewService(tx, checker, sink, placementOpts...)
	petsSvc := pets.NewService(petRepo, checker)
	helpersSvc := helpers.NewService(helperRepo)
	eventsSvc := events.NewService(eventRepo, petsSvc, placementSvc, checker)

	// Rutas por módulo
	pets.RegisterRoutes(r, petsSvc)
	helpers.RegisterRoutes(r, helpersSvc)
	events.RegisterRoutes(r, eventsSvc)
	placement.RegisterRoutes(r, placementSvc)

	return r
}
