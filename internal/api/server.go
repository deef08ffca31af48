// Package api provides the HTTP and WebSocket server for running
// backtests and sweeps remotely.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quantbench/strategy-tester/internal/backtester"
	"github.com/quantbench/strategy-tester/internal/data"
	"github.com/quantbench/strategy-tester/internal/strategy"
	"github.com/quantbench/strategy-tester/pkg/types"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	store      *data.Store
	registry   *strategy.Registry
	backtests  map[string]*BacktestState
}

// BacktestState tracks one requested backtest run.
type BacktestState struct {
	ID        string                    `json:"id"`
	Symbol    string                    `json:"symbol"`
	Strategy  string                    `json:"strategy"`
	Status    string                    `json:"status"`
	Started   time.Time                 `json:"started"`
	Result    *types.BacktestResult     `json:"result,omitempty"`
	Metrics   *types.PerformanceMetrics `json:"metrics,omitempty"`
	Error     string                    `json:"error,omitempty"`
	engine    *backtester.Engine
	progress  *types.BacktestProgress
	listeners []chan *types.BacktestProgress
}

// NewServer creates a new API server.
func NewServer(logger *zap.Logger, config *types.ServerConfig, store *data.Store, registry *strategy.Registry) *Server {
	server := &Server{
		logger:    logger,
		config:    config,
		router:    mux.NewRouter(),
		store:     store,
		registry:  registry,
		backtests: make(map[string]*BacktestState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/strategies", s.handleListStrategies).Methods("GET")
	s.router.HandleFunc("/api/v1/data/symbols", s.handleListSymbols).Methods("GET")

	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/{id}", s.handleGetBacktest).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/trades", s.handleGetTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/report", s.handleGetReport).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/cancel", s.handleCancelBacktest).Methods("POST")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info("API server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Server) Router() http.Handler { return s.router }

// RunBacktestRequest is the POST body for starting a backtest.
type RunBacktestRequest struct {
	Symbol   string              `json:"symbol"`
	Strategy string              `json:"strategy"`
	Params   strategy.Params     `json:"params,omitempty"`
	Config   *types.EngineConfig `json:"config,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	keys := s.registry.List()
	out := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		def, _ := s.registry.Get(key)
		out = append(out, map[string]any{
			"key":        key,
			"name":       def.Name,
			"paramSpace": def.ParamSpace,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Symbols())
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req RunBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	series, ok := s.store.Get(req.Symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", req.Symbol))
		return
	}

	strat, ok := s.registry.Create(req.Strategy, req.Params)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown strategy %q", req.Strategy))
		return
	}

	engine, err := backtester.NewEngine(s.logger, req.Config)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := &BacktestState{
		ID:       uuid.New().String(),
		Symbol:   req.Symbol,
		Strategy: req.Strategy,
		Status:   "running",
		Started:  time.Now(),
		engine:   engine,
	}

	s.mu.Lock()
	s.backtests[state.ID] = state
	s.mu.Unlock()

	backtestsStarted.Inc()
	go s.runBacktest(state, strat, series)

	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": state.ID})
}

// runBacktest executes a backtest in the background, forwarding engine
// progress to any WebSocket listeners.
func (s *Server) runBacktest(state *BacktestState, strat strategy.Strategy, series *types.Series) {
	start := time.Now()

	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			select {
			case progress := <-state.engine.ProgressChan():
				s.broadcastProgress(state, progress)
			case <-quit:
				return
			}
		}
	}()

	signals := strat.ComputeSignals(series)
	result, err := state.engine.Run(context.Background(), series.WithSignals(signals))

	s.mu.Lock()
	if err != nil {
		state.Status = "failed"
		state.Error = err.Error()
		backtestsFailed.Inc()
	} else {
		state.Status = "completed"
		state.Result = result
		state.Metrics = backtester.NewMetricsCalculator().Calculate(result)
		backtestsCompleted.Inc()
		backtestDuration.Observe(time.Since(start).Seconds())
	}
	final := s.finalProgress(state)
	listeners := state.listeners
	state.listeners = nil
	s.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- final:
		default:
		}
		close(ch)
	}

	if err != nil {
		s.logger.Warn("backtest failed",
			zap.String("id", state.ID),
			zap.Error(err),
		)
	}
}

// finalProgress builds the terminal progress update for a run.
// Caller holds s.mu.
func (s *Server) finalProgress(state *BacktestState) *types.BacktestProgress {
	progress := &types.BacktestProgress{
		ID:       state.ID,
		Status:   state.Status,
		Progress: 100,
		Error:    state.Error,
	}
	if state.Result != nil {
		progress.TotalBars = len(state.Result.EquityCurve)
		progress.BarsProcessed = progress.TotalBars
		progress.TradesExecuted = len(state.Result.Trades)
		progress.CurrentEquity = state.Result.FinalEquity
	}
	return progress
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	state, ok := s.getState(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown backtest id")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	state, ok := s.getState(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown backtest id")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if state.Result == nil {
		s.writeError(w, http.StatusConflict, "backtest not completed")
		return
	}
	s.writeJSON(w, http.StatusOK, state.Result.Trades)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	state, ok := s.getState(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown backtest id")
		return
	}

	s.mu.RLock()
	metrics := state.Metrics
	s.mu.RUnlock()
	if metrics == nil {
		s.writeError(w, http.StatusConflict, "backtest not completed")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, backtester.FormatReport(metrics))
}

func (s *Server) handleCancelBacktest(w http.ResponseWriter, r *http.Request) {
	state, ok := s.getState(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown backtest id")
		return
	}

	state.engine.Cancel()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) getState(id string) (*BacktestState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.backtests[id]
	return state, ok
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
