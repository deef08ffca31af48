package api

import (
	"net/http"

	"github.com/quantbench/strategy-tester/pkg/types"
	"go.uber.org/zap"
)

// handleWebSocket streams progress updates for one backtest run. The
// client connects with ?id=<run id> and receives JSON BacktestProgress
// messages until the run reaches a terminal state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	state, ok := s.getState(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown backtest id")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates := s.subscribe(state)
	if updates == nil {
		// Run already finished; send the terminal snapshot and bail.
		s.mu.RLock()
		final := s.finalProgress(state)
		s.mu.RUnlock()
		conn.WriteJSON(final)
		return
	}

	for progress := range updates {
		if err := conn.WriteJSON(progress); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

// subscribe registers a progress listener for a run, or returns nil if
// the run is already in a terminal state.
func (s *Server) subscribe(state *BacktestState) chan *types.BacktestProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.Status != "running" {
		return nil
	}
	ch := make(chan *types.BacktestProgress, 16)
	state.listeners = append(state.listeners, ch)
	return ch
}

// broadcastProgress fans an engine progress update out to listeners,
// dropping updates for slow consumers.
func (s *Server) broadcastProgress(state *BacktestState, progress *types.BacktestProgress) {
	progress.ID = state.ID

	s.mu.Lock()
	state.progress = progress
	listeners := make([]chan *types.BacktestProgress, len(state.listeners))
	copy(listeners, state.listeners)
	s.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- progress:
		default:
		}
	}
}
