package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ha-futures-bot/config"
	"ha-futures-bot/logging"
	"ha-futures-bot/metrics"
	"ha-futures-bot/models"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})          {}
func (nopLogger) Info(string, ...interface{})           {}
func (nopLogger) Warning(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})          {}
func (nopLogger) Fatal(string, ...interface{})          {}
func (nopLogger) Sync() error                           { return nil }
func (nopLogger) ChangeLogLevel(level logging.LogLevel) {}

func init() { gin.SetMode(gin.TestMode) }

type fakeHistory struct{ recs []models.TradeRecord }

func (f fakeHistory) Recent(_ context.Context, n int) ([]models.TradeRecord, error) {
	if n < len(f.recs) {
		return f.recs[len(f.recs)-n:], nil
	}
	return f.recs, nil
}

func TestStatusEndpoint(t *testing.T) {
	state := models.NewStateStore("ETHUSDT")
	state.Update(func(s *models.BotState) {
		s.Phase = models.PhaseProtected
		s.Side = models.SideLong
		s.Iteration = 7
		s.Position = models.Position{Symbol: "ETHUSDT", Quantity: 1, EntryPrice: 2000, LiquidationPrice: 1500}
	})
	r := NewRouter(state, nil, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State.Phase != models.PhaseProtected || resp.State.Iteration != 7 {
		t.Fatalf("unexpected state: %+v", resp.State)
	}
	if resp.State.Position.LiquidationPrice != 1500 {
		t.Fatalf("liquidation price missing: %+v", resp.State.Position)
	}
}

func TestTradesAndMetricsEndpoints(t *testing.T) {
	hist := fakeHistory{recs: []models.TradeRecord{{Market: "ETHUSDT", Cause: "Signal Change"}, {Market: "ETHUSDT", Cause: "Stop Loss"}}}
	r := NewRouter(models.NewStateStore("ETHUSDT"), nil, hist)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trades?n=1", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Stop Loss") || strings.Contains(rec.Body.String(), "Signal Change") {
		t.Fatalf("unexpected trades response %d: %s", rec.Code, rec.Body.String())
	}

	metrics.Iterations.Inc()
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "futures_bot_iterations_total") {
		t.Fatalf("metrics not exposed: %d", rec.Code)
	}

	r = NewRouter(models.NewStateStore("ETHUSDT"), nil, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trades", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without history, got %d", rec.Code)
	}
}

func TestEventsWebsocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nopLogger{})
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(models.NewStateStore("ETHUSDT"), hub, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "status" {
		t.Fatalf("expected status hello, got %+v (%v)", hello, err)
	}

	hub.OnEvent(models.Event{Kind: "entry", Message: "LONG 1 ETHUSDT"})
	var msg struct {
		Type string       `json:"type"`
		Data models.Event `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Type != "event" || msg.Data.Kind != "entry" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	hub := NewHub(nopLogger{})
	for i := 0; i < cap(hub.broadcast)+10; i++ {
		hub.OnCondition(models.ConditionEvent{Name: "x"})
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Fatalf("queue should be full, got %d", len(hub.broadcast))
	}
}

func TestStartServerDisabled(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.StatusAddr = "off"
	if srv := StartServer(cfg, models.NewStateStore("ETHUSDT"), nil, nil, nopLogger{}); srv != nil {
		t.Fatalf("expected nil server when disabled")
	}
}
