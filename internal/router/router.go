package router

import (
	"context"
	"database/sql"
	"net/http"

	"dental-inspections/internal/adapters/capabilities/rolecaps"
	mem "dental-inspections/internal/adapters/storage/memory"
	pg "dental-inspections/internal/adapters/storage/postgres"
	"dental-inspections/internal/autosave"
	_ "dental-inspections/internal/docs"
	"dental-inspections/internal/domain/clinics"
	"dental-inspections/internal/domain/collaborators"
	"dental-inspections/internal/domain/drafts"
	"dental-inspections/internal/domain/signatures"
	"dental-inspections/internal/domain/submissions"
	"dental-inspections/internal/domain/violations"
	"dental-inspections/internal/domain/visits"
	"dental-inspections/internal/live"
	"dental-inspections/internal/middleware"
	"dental-inspections/internal/platform/config"
	"dental-inspections/internal/platform/logger"
	"dental-inspections/internal/platform/metrics"
	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/ports/capabilities"
	"dental-inspections/internal/printing"
	"dental-inspections/internal/realtime"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// nil = tabla por rol (rolecaps) según Config.Capabilities
	Capabilities capabilities.CapabilitiesResolver

	// Opcional: si viene, usa Postgres. Si no, Config.Database.DSN; si tampoco, in-memory.
	DB *sql.DB
	// Opcional: si viene, hub realtime en Redis. Si no, Config.Redis.Addr; si tampoco, in-memory.
	Redis *redis.Client

	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// App es el handler HTTP más lo que hay que cerrar ordenadamente al apagar.
type App struct {
	handler  http.Handler
	autosave *autosave.Debouncer
	hub      realtime.Hub
	db       *sql.DB
	ownsDB   bool

	Printing *printing.Service
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close escribe las ediciones pendientes del autosave y libera hub y DB propios.
func (a *App) Close(ctx context.Context) error {
	a.autosave.Close(ctx)
	err := a.hub.Close()
	if a.ownsDB {
		if cerr := a.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type repos struct {
	clinics       clinics.Repository
	visits        visits.Repository
	drafts        drafts.Repository
	collaborators collaborators.Repository
	violations    violations.Repository
	submissions   submissions.Repository
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	caps := opts.Capabilities
	if caps == nil {
		caps = rolecaps.NewResolver(rolecaps.Options{AllowAll: cfg.Capabilities.AllowAll, CacheTTL: cfg.Capabilities.CacheTTL})
	}

	app := &App{}

	// Si no te pasan DB explícita, intenta por config (para dev/handoff)
	db := opts.DB
	if db == nil && cfg.Database.DSN != "" {
		opened, err := pg.Open(cfg.Database.DSN, pg.PoolConfig{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			log.Warn("postgres unavailable, using in-memory storage", map[string]any{"error": err.Error()})
		} else {
			db = opened
			app.ownsDB = true
		}
	}
	app.db = db

	var rp repos
	if db != nil {
		rp = repos{
			clinics:       pg.NewClinicsRepo(db),
			visits:        pg.NewVisitsRepo(db),
			drafts:        pg.NewDraftsRepo(db),
			collaborators: pg.NewCollaboratorsRepo(db),
			violations:    pg.NewViolationsRepo(db),
			submissions:   pg.NewSubmissionsRepo(db),
		}
	} else {
		rp = repos{
			clinics:       mem.NewClinicRepo(),
			visits:        mem.NewVisitRepo(),
			drafts:        mem.NewDraftRepo(),
			collaborators: mem.NewCollaboratorRepo(),
			violations:    mem.NewViolationRepo(),
			submissions:   mem.NewSubmissionRepo(),
		}
	}

	hub, err := newHub(opts.Redis, cfg)
	if err != nil {
		return nil, err
	}
	app.hub = hub

	// Services por módulo
	clinicsSvc := clinics.NewService(rp.clinics)
	visitsSvc := visits.NewService(rp.visits, clinicsSvc)
	collabSvc := collaborators.NewService(rp.collaborators)
	draftsSvc := drafts.NewService(rp.drafts, visitsSvc, collabSvc).
		WithPublisher(hub).
		WithLogger(log).
		WithMetrics(m)
	app.autosave = autosave.New(draftsSvc.FlushBatch, autosave.Options{
		Quiet:   cfg.Autosave.Quiet,
		MaxWait: cfg.Autosave.MaxWait,
		Logger:  log,
		OnFlush: func(_ string, _ int, err error) {
			result := "ok"
			if err != nil {
				result = "error"
			}
			m.AutosaveFlushes.WithLabelValues(result).Inc()
		},
	})

	violationsSvc := violations.NewService(rp.violations, visitsSvc).WithMetrics(m)
	submissionsSvc := submissions.NewService(rp.submissions, draftsSvc, visitsSvc, violationsSvc).
		WithPublisher(hub).
		WithAutosave(app.autosave).
		WithLogger(log).
		WithMetrics(m)
	signaturesSvc := signatures.NewService(draftsSvc)

	printingSvc, err := printing.NewService(printing.Sources{
		Submissions: submissionsSvc,
		Violations:  violationsSvc,
		Visits:      visitsSvc,
		Clinics:     clinicsSvc,
	})
	if err != nil {
		_ = hub.Close()
		return nil, err
	}
	app.Printing = printingSvc

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLog(log))
	r.Use(m.Middleware)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	clinics.RegisterRoutes(r, clinicsSvc, caps)
	visits.RegisterRoutes(r, visitsSvc, caps)
	drafts.RegisterRoutes(r, draftsSvc)
	collaborators.RegisterRoutes(r, collabSvc, draftsSvc)
	violations.RegisterRoutes(r, violationsSvc, caps)
	signatures.RegisterRoutes(r, signaturesSvc, draftsSvc)
	submissions.RegisterRoutes(r, submissionsSvc, draftsSvc, caps)
	printing.RegisterRoutes(r, printingSvc, draftsSvc, caps)
	live.RegisterRoutes(r, live.Options{
		Drafts:   draftsSvc,
		Hub:      hub,
		Autosave: app.autosave,
		Logger:   log,
		Metrics:  m,
	})

	app.handler = r
	return app, nil
}

func newHub(rdb *redis.Client, cfg *config.Config) (realtime.Hub, error) {
	if rdb == nil && cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if rdb == nil {
		return realtime.NewMemoryHub(cfg.Presence.TTL), nil
	}
	return realtime.NewRedisHub(rdb, cfg.Redis.Namespace, cfg.Presence.TTL)
}
