package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/Harshitk-cp/concord/internal/api/handlers"
	mw "github.com/Harshitk-cp/concord/internal/api/middleware"
	"github.com/Harshitk-cp/concord/internal/buildconfig"
	"github.com/Harshitk-cp/concord/internal/config"
	"github.com/Harshitk-cp/concord/internal/detect"
	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/Harshitk-cp/concord/internal/ledger"
	"github.com/Harshitk-cp/concord/internal/service"
	"github.com/Harshitk-cp/concord/internal/store"
	"github.com/Harshitk-cp/concord/internal/transport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router      *chi.Mux
	Engine      *service.CycleEngine
	Driver      *service.Driver
	Workspace   *service.Workspace
	Coordinator *service.Coordinator
	Peer        *service.PeerAgent
	Reconciler  *service.Reconciler
	startTime   time.Time
	counters    mw.Counters
}

// NewApp wires the services and mounts the HTTP routes. db may be
// nil, in which case nothing is archived. An empty roster coordinates with this
// process only, through the in-process transport.
func NewApp(db *pgxpool.Pool, roster []domain.AgentConfig, logger *zap.Logger) *App {
	var opts []ledger.Option
	if seed := config.LedgerGenesisSeed(); seed != "" {
		opts = append(opts, ledger.WithGenesisSeed(seed))
	}
	l := ledger.New(opts...)

	// Detection strategy
	kw := detect.NewKeyword()

	// Services
	engine := service.NewCycleEngine(kw, kw, kw, l, logger)
	if db != nil {
		engine.SetArchive(store.NewLedgerStore(db))
		engine.SetResultStore(store.NewCycleResultStore(db))
	}

	driver := service.NewDriver(engine, logger)
	driver.SetMaxIterations(config.MaxCycleIterations())

	agentID := config.AgentID()
	workspace := service.NewWorkspace(agentID, engine, kw, service.DefaultPerspectives(kw), logger)
	peer := service.NewPeerAgent(agentID, workspace, logger)

	var agentTransport domain.AgentTransport
	if len(roster) > 0 {
		agentTransport = transport.NewHTTP(roster, config.APIKey())
	} else {
		local := transport.NewLocal()
		local.Register(agentID, peer)
		agentTransport = local
		roster = []domain.AgentConfig{{ID: agentID, Role: "local"}}
	}
	logger.Info("coordination roster loaded", zap.Int("agents", len(roster)))

	coordinator := service.NewCoordinator(engine, kw, agentTransport, roster, logger)
	coordinator.SetTimeouts(config.SyncTimeout(), config.AnalyzeTimeout(), config.ExecuteTimeout())

	reconciler := service.NewReconciler(coordinator, logger)
	reconciler.SetInterval(config.ReconcileInterval())

	// Handlers
	cycleHandler := handlers.NewCycleHandler(driver)
	ledgerHandler := handlers.NewLedgerHandler(l)
	reflectHandler := handlers.NewReflectHandler(workspace)
	coordinationHandler := handlers.NewCoordinationHandler(coordinator)
	agentHandler := handlers.NewAgentHandler(peer)

	r := chi.NewRouter()

	app := &App{
		Router:      r,
		Engine:      engine,
		Driver:      driver,
		Workspace:   workspace,
		Coordinator: coordinator,
		Peer:        peer,
		Reconciler:  reconciler,
		startTime:   time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.counters)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(metricsCollector.Middleware)                                  // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	auth := func(next http.Handler) http.Handler { return next }
	if key := config.APIKey(); key != "" {
		auth = mw.APIKeyAuth(key)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth)

		r.Route("/cycles", func(r chi.Router) {
			r.Post("/", cycleHandler.Run)
			r.Get("/{id}", cycleHandler.Get)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", ledgerHandler.Export)
			r.Get("/verify", ledgerHandler.Verify)
		})

		r.Route("/reflect", func(r chi.Router) {
			r.Post("/", reflectHandler.Reflect)
			r.Get("/status", reflectHandler.Status)
		})

		r.Route("/coordination", func(r chi.Router) {
			r.Post("/grounding", coordinationHandler.Grounding)
			r.Post("/actions", coordinationHandler.Action)
			r.Post("/emergence", coordinationHandler.Emergence)
			r.Get("/status", coordinationHandler.Status)
			r.Get("/understanding", coordinationHandler.Understanding)
			r.Post("/reconcile", coordinationHandler.Reconcile)
		})
	})

	// Peer endpoints reached by other coordinators
	r.With(auth).Post(transport.AgentPath+"{kind}", agentHandler.Handle)

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok", "build": buildconfig.VersionInfo(), "archive": "disabled"}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
			resp["archive"] = "postgres"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		coord := app.Coordinator.Status()

		response := map[string]any{
			"uptime_seconds":    uptime.Seconds(),
			"uptime_human":      uptime.Round(time.Second).String(),
			"request_count":     app.counters.Requests.Load(),
			"client_errors":     app.counters.ClientErrors.Load(),
			"server_errors":     app.counters.ServerErrors.Load(),
			"requests_inflight": app.counters.InFlight.Load(),
			"goroutines":        runtime.NumGoroutine(),
			"ledger": map[string]any{
				"length": app.Engine.Ledger().Len(),
				"head":   app.Engine.Ledger().Head(),
			},
			"coherence": map[string]any{
				"total": app.Engine.Coherence().Total(),
				"ratio": app.Engine.Coherence().Ratio(),
			},
			"coordination": map[string]any{
				"understanding_version": coord.Version,
				"active_contradictions": coord.ActiveContradictions,
				"pending_conflicts":     coord.PendingConflicts,
				"confidence":            coord.Confidence,
			},
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure implementations satisfy interfaces at compile time.
var (
	_ domain.LedgerArchive    = (*store.LedgerStore)(nil)
	_ domain.CycleResultStore = (*store.CycleResultStore)(nil)
	_ domain.AgentTransport   = (*transport.HTTP)(nil)
	_ domain.AgentTransport   = (*transport.Local)(nil)
	_ domain.AgentHandler     = (*service.PeerAgent)(nil)
	_ domain.Detector         = (*detect.Keyword)(nil)
	_ domain.Resolver         = (*detect.Keyword)(nil)
	_ domain.TextAnalyzer     = (*detect.Keyword)(nil)
	_ domain.FactComparator   = (*detect.Keyword)(nil)
)
