package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"signaldesk/internal/model"
	"signaldesk/pkg/alpaca"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ────────────────────────────────────────────────────────────
// BuildOrder
// ────────────────────────────────────────────────────────────

func TestBuildOrder_Plain(t *testing.T) {
	req, err := BuildOrder(OrderSpec{Symbol: " aapl ", Side: model.SideBuy, Qty: dec("3")})
	if err != nil {
		t.Fatal(err)
	}
	if req.Symbol != "AAPL" || req.TimeInForce != model.TIFDay || req.Bracket() {
		t.Errorf("req = %+v", req)
	}
	if _, err := uuid.Parse(req.ClientOrderID); err != nil {
		t.Errorf("client order id %q is not a uuid: %v", req.ClientOrderID, err)
	}

	other, _ := BuildOrder(OrderSpec{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("3")})
	if other.ClientOrderID == req.ClientOrderID {
		t.Error("client order ids should be unique")
	}
}

func TestBuildOrder_BracketLegs(t *testing.T) {
	tests := []struct {
		side   model.Side
		tp, sl string
	}{
		{model.SideBuy, "110.00", "95.00"},
		{model.SideSell, "90.00", "105.00"},
	}
	for _, tc := range tests {
		req, err := BuildOrder(OrderSpec{
			Symbol: "MSFT", Side: tc.side, Qty: dec("1"),
			RefPrice: 100, TakeProfitPct: 10, StopLossPct: 5,
		})
		if err != nil {
			t.Fatal(err)
		}
		if req.TakeProfit == nil || req.StopLoss == nil {
			t.Fatalf("%s: legs missing: %+v", tc.side, req)
		}
		if !req.TakeProfit.Equal(dec(tc.tp)) || !req.StopLoss.Equal(dec(tc.sl)) {
			t.Errorf("%s: tp=%s sl=%s, want %s %s", tc.side, req.TakeProfit, req.StopLoss, tc.tp, tc.sl)
		}
	}
}

func TestBuildOrder_LegsRoundedToCents(t *testing.T) {
	req, err := BuildOrder(OrderSpec{Symbol: "TSLA", Side: model.SideBuy, Qty: dec("1"), RefPrice: 187.33, TakeProfitPct: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	// 187.33 * 1.015 = 190.13995
	if !req.TakeProfit.Equal(dec("190.14")) || req.StopLoss != nil {
		t.Errorf("tp=%v sl=%v", req.TakeProfit, req.StopLoss)
	}
}

func TestBuildOrder_NoRefPriceNoLegs(t *testing.T) {
	req, err := BuildOrder(OrderSpec{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1"), TakeProfitPct: 5, StopLossPct: 5})
	if err != nil {
		t.Fatal(err)
	}
	if req.Bracket() {
		t.Errorf("legs without reference price: %+v", req)
	}
}

func TestBuildOrder_Crypto(t *testing.T) {
	req, err := BuildOrder(OrderSpec{Symbol: "btc/usd", Side: model.SideSell, Qty: dec("0.01")})
	if err != nil {
		t.Fatal(err)
	}
	if req.Symbol != "BTC/USD" || req.TimeInForce != model.TIFGTC {
		t.Errorf("req = %+v", req)
	}
	_, err = BuildOrder(OrderSpec{Symbol: "BTC/USD", Side: model.SideBuy, Qty: dec("1"), RefPrice: 60000, StopLossPct: 2})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("crypto legs err = %v", err)
	}
}

func TestBuildOrder_Invalid(t *testing.T) {
	for name, spec := range map[string]OrderSpec{
		"no symbol": {Side: model.SideBuy, Qty: dec("1")},
		"bad side":  {Symbol: "AAPL", Side: "hold", Qty: dec("1")},
		"zero qty":  {Symbol: "AAPL", Side: model.SideBuy},
		"neg qty":   {Symbol: "AAPL", Side: model.SideBuy, Qty: dec("-1")},
		"bad tif":   {Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1"), TimeInForce: "week"},
		"sl 100":    {Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1"), StopLossPct: 100},
		"neg tp":    {Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1"), TakeProfitPct: -1},
	} {
		if _, err := BuildOrder(spec); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("%s: err = %v, want ErrInvalidOrder", name, err)
		}
	}
}

// ────────────────────────────────────────────────────────────
// BrokerExecutor
// ────────────────────────────────────────────────────────────

type fakePlacer struct {
	got   alpaca.OrderParams
	order *alpaca.Order
	err   error
}

func (f *fakePlacer) PlaceOrder(_ context.Context, p alpaca.OrderParams) (*alpaca.Order, error) {
	f.got = p
	return f.order, f.err
}

func TestBrokerExecutor_Submit(t *testing.T) {
	submitted := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	fp := &fakePlacer{order: &alpaca.Order{
		ID: "o-1", ClientOrderID: "cid", Status: "accepted", Symbol: "AAPL", Side: "buy",
		Qty: dec("2"), SubmittedAt: submitted,
	}}
	ex := NewBrokerExecutor(fp)
	tp := dec("110")
	ack, err := ex.Submit(context.Background(), model.OrderRequest{
		Symbol: "AAPL", Side: model.SideBuy, Qty: dec("2"), TimeInForce: model.TIFDay, ClientOrderID: "cid", TakeProfit: &tp,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fp.got.Side != "buy" || fp.got.TimeInForce != "day" || fp.got.TakeProfit == nil || fp.got.ClientOrderID != "cid" {
		t.Errorf("params = %+v", fp.got)
	}
	if ack.OrderID != "o-1" || ack.Status != "accepted" || ack.Side != model.SideBuy || !ack.SubmittedAt.Equal(submitted) {
		t.Errorf("ack = %+v", ack)
	}
	if ex.Mode() != "live" {
		t.Errorf("Mode = %s", ex.Mode())
	}
}

func TestBrokerExecutor_Error(t *testing.T) {
	apiErr := &alpaca.APIError{StatusCode: 422, Code: 40310000, Message: "insufficient buying power"}
	ex := NewBrokerExecutor(&fakePlacer{err: apiErr})
	_, err := ex.Submit(context.Background(), model.OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1")})
	var got *alpaca.APIError
	if !errors.As(err, &got) || got.StatusCode != 422 {
		t.Errorf("err = %v", err)
	}
}

// ────────────────────────────────────────────────────────────
// PaperExecutor
// ────────────────────────────────────────────────────────────

func TestPaperExecutor_Slippage(t *testing.T) {
	p := NewPaperExecutor(10) // 0.10%
	buy, err := p.Submit(context.Background(), model.OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1"), RefPrice: 100, ClientOrderID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	sell, err := p.Submit(context.Background(), model.OrderRequest{Symbol: "AAPL", Side: model.SideSell, Qty: dec("1"), RefPrice: 100, ClientOrderID: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !buy.FilledAvgPrice.Equal(dec("100.1")) || !sell.FilledAvgPrice.Equal(dec("99.9")) {
		t.Errorf("buy=%s sell=%s", buy.FilledAvgPrice, sell.FilledAvgPrice)
	}
	if buy.OrderID != "PAPER-1" || sell.OrderID != "PAPER-2" || buy.Status != "filled" || buy.ClientOrderID != "a" {
		t.Errorf("acks = %+v %+v", buy, sell)
	}
	fills := p.GetFills()
	if len(fills) != 2 || !fills[1].Slippage.Equal(dec("0.1")) {
		t.Errorf("fills = %+v", fills)
	}
}

func TestPaperExecutor_NeedsRefPrice(t *testing.T) {
	p := NewPaperExecutor(0)
	if _, err := p.Submit(context.Background(), model.OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1")}); err == nil {
		t.Error("expected error without reference price")
	}
	if len(p.GetFills()) != 0 {
		t.Error("failed submission should not record a fill")
	}
}

// ────────────────────────────────────────────────────────────
// Journal
// ────────────────────────────────────────────────────────────

type memJournal struct {
	recs []model.OrderRecord
	err  error
}

func (m *memJournal) RecordOrder(_ context.Context, rec model.OrderRecord) error {
	m.recs = append(m.recs, rec)
	return m.err
}

func TestWithJournal(t *testing.T) {
	j := &memJournal{}
	ex := WithJournal(NewPaperExecutor(0), j)

	if _, err := ex.Submit(context.Background(), model.OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("2"), RefPrice: 50, ClientOrderID: "ok"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Submit(context.Background(), model.OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("2"), ClientOrderID: "bad"}); err == nil {
		t.Fatal("expected paper error")
	}

	if len(j.recs) != 2 {
		t.Fatalf("records = %d", len(j.recs))
	}
	if r := j.recs[0]; r.Mode != "paper" || r.Status != "filled" || r.FillPrice != "50" || r.Qty != "2" {
		t.Errorf("ok record = %+v", r)
	}
	if r := j.recs[1]; r.Status != "error" || r.Error == "" || r.ClientOrderID != "bad" {
		t.Errorf("error record = %+v", r)
	}
}

func TestWithJournal_FailureIgnored(t *testing.T) {
	ex := WithJournal(NewPaperExecutor(0), &memJournal{err: errors.New("disk full")})
	if _, err := ex.Submit(context.Background(), model.OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Qty: dec("1"), RefPrice: 10}); err != nil {
		t.Errorf("journal failure leaked: %v", err)
	}
	if WithJournal(NewPaperExecutor(0), nil).Mode() != "paper" {
		t.Error("nil journal should return the executor unchanged")
	}
}
