package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quantbench/strategy-tester/internal/data"
	"github.com/quantbench/strategy-tester/internal/strategy"
	"github.com/quantbench/strategy-tester/pkg/types"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	store.Put(data.GenerateSample("SAMPLE", 400, 42))

	config := &types.ServerConfig{
		Host:          "localhost",
		Port:          0,
		WebSocketPath: "/ws",
	}
	return NewServer(zap.NewNop(), config, store, strategy.NewRegistry(zap.NewNop()))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	var resp map[string]any
	rec := doJSON(t, server.Router(), "GET", "/api/v1/health", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
}

func TestListStrategies(t *testing.T) {
	server := newTestServer(t)

	var resp []map[string]any
	rec := doJSON(t, server.Router(), "GET", "/api/v1/strategies", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(resp) != 4 {
		t.Fatalf("got %d strategies, want 4", len(resp))
	}
	if resp[0]["key"] != "bb_squeeze" {
		t.Errorf("first key = %v, want bb_squeeze", resp[0]["key"])
	}
}

func TestListSymbols(t *testing.T) {
	server := newTestServer(t)

	var resp []string
	rec := doJSON(t, server.Router(), "GET", "/api/v1/data/symbols", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(resp) != 1 || resp[0] != "SAMPLE" {
		t.Errorf("symbols = %v, want [SAMPLE]", resp)
	}
}

func TestRunBacktestUnknownSymbol(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server.Router(), "POST", "/api/v1/backtest/run",
		RunBacktestRequest{Symbol: "NOPE", Strategy: "macd_crossover"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRunBacktestUnknownStrategy(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server.Router(), "POST", "/api/v1/backtest/run",
		RunBacktestRequest{Symbol: "SAMPLE", Strategy: "nope"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRunBacktestLifecycle(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	var started map[string]string
	rec := doJSON(t, router, "POST", "/api/v1/backtest/run",
		RunBacktestRequest{Symbol: "SAMPLE", Strategy: "macd_crossover"}, &started)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	id := started["id"]
	if id == "" {
		t.Fatal("no backtest id returned")
	}

	var state BacktestState
	deadline := time.Now().Add(5 * time.Second)
	for {
		doJSON(t, router, "GET", "/api/v1/backtest/"+id, nil, &state)
		if state.Status != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("backtest did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if state.Status != "completed" {
		t.Fatalf("status = %q (%s), want completed", state.Status, state.Error)
	}
	if state.Result == nil || state.Metrics == nil {
		t.Fatal("completed state missing result or metrics")
	}
	if len(state.Result.EquityCurve) != 400 {
		t.Errorf("equity curve length = %d, want 400", len(state.Result.EquityCurve))
	}

	var trades []types.Trade
	rec = doJSON(t, router, "GET", "/api/v1/backtest/"+id+"/trades", nil, &trades)
	if rec.Code != http.StatusOK {
		t.Fatalf("trades status = %d, want 200", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/backtest/"+id+"/report", nil)
	reportRec := httptest.NewRecorder()
	router.ServeHTTP(reportRec, req)
	if reportRec.Code != http.StatusOK {
		t.Fatalf("report status = %d, want 200", reportRec.Code)
	}
	if !strings.Contains(reportRec.Body.String(), "BACKTEST PERFORMANCE REPORT") {
		t.Error("report body missing header")
	}
}

func TestGetBacktestUnknownID(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server.Router(), "GET", "/api/v1/backtest/does-not-exist", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTradesBeforeCompletion(t *testing.T) {
	server := newTestServer(t)

	// Register a state by hand so there is a running id to query.
	server.mu.Lock()
	server.backtests["pending"] = &BacktestState{ID: "pending", Status: "running"}
	server.mu.Unlock()

	rec := doJSON(t, server.Router(), "GET", "/api/v1/backtest/pending/trades", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	rec = doJSON(t, server.Router(), "GET", "/api/v1/backtest/pending/report", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("report status = %d, want 409", rec.Code)
	}
}

func TestRunBacktestBadBody(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/backtest/run", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
