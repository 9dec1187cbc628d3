package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
	"budgetblocks/internal/middleware/ratelimit"
	"budgetblocks/internal/middleware/security"
	"budgetblocks/internal/middleware/trace"
	"budgetblocks/internal/query"
	"budgetblocks/internal/storage"
)

// VersionHeader carries the state version a response reflects.
const VersionHeader = "X-State-Version"

// Deps are the collaborators the API serves.
type Deps struct {
	Store  *ledger.Store
	Engine *query.Engine
	Prefs  storage.PreferenceStore
	Events storage.EventLog

	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error

	Logger    *log.Logger
	RateLimit ratelimit.Config
	Now       func() time.Time
}

// Server is the JSON API server.
type Server struct {
	http.Server

	store  *ledger.Store
	engine *query.Engine
	prefs  storage.PreferenceStore
	events storage.EventLog
	ready  func(ctx context.Context) error
	now    func() time.Time

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		store:    deps.Store,
		engine:   deps.Engine,
		prefs:    deps.Prefs,
		events:   deps.Events,
		ready:    deps.Ready,
		now:      now,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(logger),
	}
	s.detector.AllowFreeText("q")
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r := mux.NewRouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// The API is its own router so a method mismatch reaches its 405 handler;
	// a mux subrouter reports it as not found.
	api := mux.NewRouter()
	r.PathPrefix("/api").Handler(api)
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = notAllowed
	api.Use(
		s.tracer.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.detector.Middleware(true),
		s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
		}, http.MethodPost, http.MethodPut, http.MethodDelete),
	)

	api.HandleFunc("/api/kpis", s.handleKPIs).Methods(http.MethodGet)

	api.HandleFunc("/api/bases", s.handleListBases).Methods(http.MethodGet)
	api.HandleFunc("/api/bases", s.handleCreateBase).Methods(http.MethodPost)
	api.HandleFunc("/api/bases/order", s.handleReorderBases).Methods(http.MethodPut)
	api.HandleFunc("/api/bases/{id}", s.handleGetBase).Methods(http.MethodGet)
	api.HandleFunc("/api/bases/{id}", s.handleUpdateBase).Methods(http.MethodPut)
	api.HandleFunc("/api/bases/{id}", s.handleDeleteBase).Methods(http.MethodDelete)

	api.HandleFunc("/api/blocks", s.handleListBlocks).Methods(http.MethodGet)
	api.HandleFunc("/api/blocks", s.handleCreateBlock).Methods(http.MethodPost)
	api.HandleFunc("/api/blocks/{id}", s.handleGetBlock).Methods(http.MethodGet)
	api.HandleFunc("/api/blocks/{id}", s.handleUpdateBlock).Methods(http.MethodPut)
	api.HandleFunc("/api/blocks/{id}", s.handleDeleteBlock).Methods(http.MethodDelete)
	api.HandleFunc("/api/blocks/{id}/band", s.handleAssignBand).Methods(http.MethodPut)
	api.HandleFunc("/api/blocks/{id}/rows", s.handleAddRow).Methods(http.MethodPost)
	api.HandleFunc("/api/blocks/{id}/rows/{rowID}", s.handleUpdateRow).Methods(http.MethodPut)
	api.HandleFunc("/api/blocks/{id}/rows/{rowID}", s.handleRemoveRow).Methods(http.MethodDelete)
	api.HandleFunc("/api/blocks/{id}/rows/{rowID}/execute", s.handleExecuteRow).Methods(http.MethodPost)
	api.HandleFunc("/api/blocks/{id}/rows/{rowID}/undo-execute", s.handleUndoExecuteRow).Methods(http.MethodPost)

	api.HandleFunc("/api/templates", s.handleListTemplates).Methods(http.MethodGet)
	api.HandleFunc("/api/templates/{id}/clone", s.handleCloneTemplate).Methods(http.MethodPost)

	api.HandleFunc("/api/bands", s.handleListBands).Methods(http.MethodGet)
	api.HandleFunc("/api/bands", s.handleCreateBand).Methods(http.MethodPost)
	api.HandleFunc("/api/bands/overlaps", s.handleBandOverlaps).Methods(http.MethodGet)
	api.HandleFunc("/api/bands/{id}", s.handleUpdateBand).Methods(http.MethodPut)
	api.HandleFunc("/api/bands/{id}", s.handleDeleteBand).Methods(http.MethodDelete)
	api.HandleFunc("/api/bands/{id}/available", s.handleAvailable).Methods(http.MethodGet)
	api.HandleFunc("/api/bands/{id}/fixed-bills", s.handlePopulateFixedBills).Methods(http.MethodPost)

	api.HandleFunc("/api/schedules", s.handleListSchedules).Methods(http.MethodGet)
	api.HandleFunc("/api/schedules", s.handleSaveSchedule).Methods(http.MethodPost)
	api.HandleFunc("/api/schedules/preview", s.handlePreviewBands).Methods(http.MethodPost)
	api.HandleFunc("/api/schedules/generate", s.handleGenerateBands).Methods(http.MethodPost)
	api.HandleFunc("/api/schedules/{id}", s.handleDeleteSchedule).Methods(http.MethodDelete)

	api.HandleFunc("/api/fixed-bills", s.handleListFixedBills).Methods(http.MethodGet)
	api.HandleFunc("/api/fixed-bills", s.handleCreateFixedBill).Methods(http.MethodPost)
	api.HandleFunc("/api/fixed-bills/{id}", s.handleUpdateFixedBill).Methods(http.MethodPut)
	api.HandleFunc("/api/fixed-bills/{id}", s.handleDeleteFixedBill).Methods(http.MethodDelete)

	api.HandleFunc("/api/masters", s.handleListMasters).Methods(http.MethodGet)
	api.HandleFunc("/api/masters/{kind}", s.handleAddMasterItem).Methods(http.MethodPost)
	api.HandleFunc("/api/masters/{kind}/{id}/usages", s.handleMasterUsages).Methods(http.MethodGet)
	api.HandleFunc("/api/masters/{kind}/{id}", s.handleDeleteMasterItem).Methods(http.MethodDelete)

	api.HandleFunc("/api/history", s.handleListHistory).Methods(http.MethodGet)
	api.HandleFunc("/api/history", s.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/api/history/{id}/restore", s.handleRestore).Methods(http.MethodPost)

	api.HandleFunc("/api/view", s.handleView).Methods(http.MethodGet)
	api.HandleFunc("/api/filters", s.handleGetFilter).Methods(http.MethodGet)
	api.HandleFunc("/api/filters", s.handleSaveFilter).Methods(http.MethodPut)
	api.HandleFunc("/api/filters/reset", s.handleResetFilter).Methods(http.MethodPost)

	api.HandleFunc("/api/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/api/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/api/import", s.handleImport).Methods(http.MethodPost)

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Limiter exposes the rate limiter so its cleanup loop can be run.
func (s *Server) Limiter() *ratelimit.Limiter { return s.limiter }

// TraceMetrics returns request counters.
func (s *Server) TraceMetrics() trace.Metrics { return s.tracer.GetMetrics() }

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// commit runs an action on the store and writes either the mapped error or
// a success response built by ok.
func (s *Server) commit(w http.ResponseWriter, r *http.Request, op, message string, action func(st *ledger.State) error, ok func(b *ResponseBuilder)) {
	version, err := s.store.Update(r.Context(), op, action)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	b := NewResponse().TriggerLedgerChanged(version)
	if message != "" {
		b.TriggerSuccessNotification(message)
	}
	if ok != nil {
		ok(b)
	}
	b.Write(w)
}

// view reads the state and writes v as JSON with the observed version.
func (s *Server) view(w http.ResponseWriter, read func(st *ledger.State) (interface{}, error)) {
	var (
		out interface{}
		err error
	)
	version := s.store.View(func(st *ledger.State) { out, err = read(st) })
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	NewResponse().Header(VersionHeader, strconv.FormatUint(version, 10)).JSON(out).Write(w)
}
