package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"

	"signaldesk/internal/analysis"
	"signaldesk/internal/bus"
	"signaldesk/internal/execution"
	"signaldesk/internal/model"
	"signaldesk/internal/notification"
	"signaldesk/internal/strategy"
)

const testSecret = "JBSWY3DPEHPK3PXP"

// ────────────────────────────────────────────────────────────────
// Fakes
// ────────────────────────────────────────────────────────────────

type fakeRunner struct {
	runErr   error
	orderErr error
	lastReq  analysis.Request
	lastCmd  analysis.OrderCommand
}

func (f *fakeRunner) Run(_ context.Context, req analysis.Request) (*analysis.Report, error) {
	f.lastReq = req
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &analysis.Report{
		Symbol:   model.NormalizeSymbol(req.Symbol),
		Strategy: strategy.KindRSI,
		Bars:     30,
		Latest:   strategy.Decision{Strategy: strategy.KindRSI, Signal: strategy.SignalBuy, Reason: "RSI 12.0 < 30 (oversold)", Index: 29},
		Signals:  []strategy.Decision{},
	}, nil
}

func (f *fakeRunner) PlaceOrder(_ context.Context, cmd analysis.OrderCommand) (model.OrderAck, error) {
	f.lastCmd = cmd
	if f.orderErr != nil {
		return model.OrderAck{}, f.orderErr
	}
	return model.OrderAck{OrderID: "PAPER-1", Status: "filled", Symbol: cmd.Symbol, Side: model.Side(cmd.Side), Qty: cmd.Qty}, nil
}

func (f *fakeRunner) Defaults() analysis.Defaults { return analysis.DefaultDefaults() }
func (f *fakeRunner) Mode() string                { return "paper" }

type fakeOrders struct {
	limit int
}

func (f *fakeOrders) ListOrders(_ context.Context, limit int) ([]model.OrderRecord, error) {
	f.limit = limit
	return []model.OrderRecord{{ClientOrderID: "c1", Mode: "paper", Symbol: "AAPL", Side: model.SideBuy, Qty: "1", Status: "filled"}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

// ────────────────────────────────────────────────────────────────
// REST
// ────────────────────────────────────────────────────────────────

func TestHealth_Default(t *testing.T) {
	mux := NewRouter(Options{Runner: &fakeRunner{}})
	rec := do(t, mux, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"mode":"paper"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestConfig(t *testing.T) {
	mux := NewRouter(Options{Runner: &fakeRunner{}, Symbols: []string{"AAPL", "BTC/USD"}, TOTPSecret: testSecret})
	rec := do(t, mux, http.MethodGet, "/api/v1/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got configResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Symbols) != 2 || len(got.Strategies) != 6 || !got.OrderOTPRequired {
		t.Errorf("config = %+v", got)
	}
	if strings.Join(got.Timeframes, ",") != "1Min,5Min,15Min,1Hour,1Day" {
		t.Errorf("timeframes = %v", got.Timeframes)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestAnalysis_OK(t *testing.T) {
	runner := &fakeRunner{}
	mux := NewRouter(Options{Runner: runner})

	rec := do(t, mux, http.MethodPost, "/api/v1/analysis", `{"symbol":"aapl","timeframe":"1Hour","strategy":"rsi","lookback_days":30}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if runner.lastReq.Timeframe != "1Hour" || runner.lastReq.LookbackDays != 30 {
		t.Errorf("request = %+v", runner.lastReq)
	}

	var rep analysis.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Symbol != "AAPL" || rep.Latest.Signal != strategy.SignalBuy {
		t.Errorf("report = %+v", rep)
	}
}

func TestAnalysis_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: lookback must be 1-365 days", analysis.ErrInvalidRequest), http.StatusBadRequest},
		{"no data", fmt.Errorf("%w: AAPL 1Day", analysis.ErrNoData), http.StatusNotFound},
		{"fetch", &analysis.FetchError{Symbol: "AAPL", Err: errors.New("403 forbidden")}, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := NewRouter(Options{Runner: &fakeRunner{runErr: tc.err}})
			rec := do(t, mux, http.MethodPost, "/api/v1/analysis", `{}`)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != tc.want || body.Error == "" {
				t.Errorf("error body = %s", rec.Body.String())
			}
		})
	}
}

func TestAnalysis_BadBody(t *testing.T) {
	mux := NewRouter(Options{Runner: &fakeRunner{}})
	for _, body := range []string{`{`, `{"symbol":"AAPL","colour":"red"}`} {
		if rec := do(t, mux, http.MethodPost, "/api/v1/analysis", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d", body, rec.Code)
		}
	}
}

func TestAnalysis_MethodNotAllowed(t *testing.T) {
	mux := NewRouter(Options{Runner: &fakeRunner{}})
	if rec := do(t, mux, http.MethodGet, "/api/v1/analysis", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestPlaceOrder_TOTP(t *testing.T) {
	runner := &fakeRunner{}
	mux := NewRouter(Options{Runner: runner, TOTPSecret: testSecret})

	rec := do(t, mux, http.MethodPost, "/api/v1/orders", `{"symbol":"AAPL","side":"buy","qty":"2","otp":"000000"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad code: status = %d", rec.Code)
	}
	if runner.lastCmd.Symbol != "" {
		t.Error("order must not be placed with a bad code")
	}

	code, err := totp.GenerateCode(testSecret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	rec = do(t, mux, http.MethodPost, "/api/v1/orders", fmt.Sprintf(`{"symbol":"AAPL","side":"buy","qty":"2","otp":%q}`, code))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !runner.lastCmd.Qty.Equal(decimal.NewFromInt(2)) || runner.lastCmd.Side != "buy" {
		t.Errorf("command = %+v", runner.lastCmd)
	}
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&analysis.OrderError{Symbol: "AAPL", Side: model.SideBuy, Err: errors.New("422 insufficient buying power")}, http.StatusBadGateway},
		{&analysis.OrderError{Symbol: "BTC/USD", Side: model.SideBuy, Err: fmt.Errorf("%w: exit legs are not supported for crypto", execution.ErrInvalidOrder)}, http.StatusBadRequest},
		{fmt.Errorf("%w: side must be buy or sell", analysis.ErrInvalidRequest), http.StatusBadRequest},
	}
	for _, tc := range cases {
		mux := NewRouter(Options{Runner: &fakeRunner{orderErr: tc.err}})
		rec := do(t, mux, http.MethodPost, "/api/v1/orders", `{"symbol":"AAPL","side":"buy"}`)
		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestListOrders(t *testing.T) {
	mux := NewRouter(Options{Runner: &fakeRunner{}})
	if rec := do(t, mux, http.MethodGet, "/api/v1/orders", ""); rec.Code != http.StatusNotFound {
		t.Errorf("journal disabled: status = %d", rec.Code)
	}

	orders := &fakeOrders{}
	mux = NewRouter(Options{Runner: &fakeRunner{}, Orders: orders})
	rec := do(t, mux, http.MethodGet, "/api/v1/orders?limit=5", "")
	if rec.Code != http.StatusOK || orders.limit != 5 {
		t.Fatalf("status = %d limit = %d", rec.Code, orders.limit)
	}
	if !strings.Contains(rec.Body.String(), `"client_order_id":"c1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec := do(t, mux, http.MethodGet, "/api/v1/orders?limit=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0: status = %d", rec.Code)
	}
}

func TestAlertHistoryNotServed(t *testing.T) {
	mux := NewRouter(Options{Runner: &fakeRunner{}})
	for _, path := range []string{"/api/v1/alerts", "/api/v1/alerts/AAPL"} {
		if rec := do(t, mux, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	metricsH := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("signaldesk_runs_total 1\n")) })
	mux := NewRouter(Options{Runner: &fakeRunner{}, Metrics: metricsH})
	if rec := do(t, mux, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

// ────────────────────────────────────────────────────────────────
// Stream
// ────────────────────────────────────────────────────────────────

func TestStream_RunsInOrder(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Options{Runner: &fakeRunner{}}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, msg := range []string{`{"id":"1","symbol":"aapl"}`, `not json`, `{"id":"3","symbol":"tsla"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []streamMessage
	for i := 0; i < 3; i++ {
		var m streamMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got = append(got, m)
	}

	if got[0].Type != "report" || got[0].ID != "1" || got[0].Report.Symbol != "AAPL" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Type != "error" || got[1].Status != http.StatusBadRequest {
		t.Errorf("second = %+v", got[1])
	}
	if got[2].Type != "report" || got[2].ID != "3" || got[2].Report.Symbol != "TSLA" {
		t.Errorf("third = %+v", got[2])
	}
}

func TestStream_RunError(t *testing.T) {
	runner := &fakeRunner{runErr: fmt.Errorf("%w: MSFT", analysis.ErrNoData)}
	srv := httptest.NewServer(NewRouter(Options{Runner: runner}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"id": "x", "symbol": "MSFT"}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m streamMessage
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Type != "error" || m.ID != "x" || m.Status != http.StatusNotFound {
		t.Errorf("message = %+v", m)
	}
}

// ────────────────────────────────────────────────────────────────
// Live alerts
// ────────────────────────────────────────────────────────────────

func TestLive_Disabled(t *testing.T) {
	rec := do(t, NewRouter(Options{Runner: &fakeRunner{}}), http.MethodGet, "/api/v1/live", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLive_BadSince(t *testing.T) {
	rec := do(t, NewRouter(Options{Runner: &fakeRunner{}, Live: bus.New(4, 4)}), http.MethodGet, "/api/v1/live?since=-3", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLive_ReplayThenStream(t *testing.T) {
	ctx := context.Background()
	b := bus.New(8, 16)
	b.Send(ctx, notification.Alert{Symbol: "AAPL", Signal: "BUY"})  // 1
	b.Send(ctx, notification.Alert{Symbol: "MSFT", Signal: "SELL"}) // 2
	b.Send(ctx, notification.Alert{Symbol: "AAPL", Signal: "HOLD"}) // 3

	srv := httptest.NewServer(NewRouter(Options{Runner: &fakeRunner{}, Live: b}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/live?symbol=AAPL&since=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	b.Send(ctx, notification.Alert{Symbol: "MSFT", Signal: "BUY"})  // 4, filtered
	b.Send(ctx, notification.Alert{Symbol: "AAPL", Signal: "SELL"}) // 5

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []bus.Event
	for i := 0; i < 2; i++ {
		var ev bus.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got = append(got, ev)
	}
	if got[0].Seq != 3 || got[0].Alert.Signal != "HOLD" {
		t.Errorf("replayed = %+v, want seq 3 HOLD", got[0])
	}
	if got[1].Seq != 5 || got[1].Alert.Signal != "SELL" {
		t.Errorf("streamed = %+v, want seq 5 SELL", got[1])
	}
}
