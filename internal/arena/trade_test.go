package arena

import (
	"math"
	"sync"
	"testing"
	"time"

	"marketmania/internal/catalog"
	"marketmania/internal/market"
)

type recordedMessage struct {
	RoomID  string
	Event   string
	Payload any
}

// recorder is a Broadcaster that captures every message for assertions.
type recorder struct {
	mu   sync.Mutex
	msgs []recordedMessage
}

func (r *recorder) Broadcast(roomID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, recordedMessage{RoomID: roomID, Event: event, Payload: payload})
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Event)
	}
	return out
}

func approx(t *testing.T, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("got %v, want %v (eps %v)", got, want, eps)
	}
}

func testStocks() []catalog.Stock {
	return []catalog.Stock{
		{Name: "Apple", BasePrice: 100, PERatio: 28, Sectors: []string{catalog.SectorTech}, TotalVolume: 100000, Volatility: 0},
		{Name: "Ford", BasePrice: 12, PERatio: 7, Sectors: []string{catalog.SectorAuto}, TotalVolume: 50000, Volatility: 0},
	}
}

func newTestGame(t *testing.T, cash float64) *Game {
	t.Helper()
	cfg := Config{
		RoomID:      "room-1",
		TotalRounds: 10,
		RoundEvery:  time.Minute,
		Grace:       time.Millisecond,
		InitialCash: cash,
		Stocks:      testStocks(),
	}
	return NewGame(cfg, market.NewEngine(market.DefaultLibrary()), &recorder{}, nil, nil)
}

func TestBuyMovesPriceByImpact(t *testing.T) {
	g := newTestGame(t, 1_000_000)

	res, err := g.Buy("alice", "Apple", 1000)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	approx(t, res.FillPrice, 100, 1e-9)
	// 100 * (1 + 0.05*sqrt(1000/100000)) = 100.5
	approx(t, res.NewPrice, 100.5, 1e-9)
	approx(t, res.Cash, 1_000_000-100*1000, 1e-9)
	if res.Position != 1000 {
		t.Fatalf("position = %d, want 1000", res.Position)
	}
}

func TestBuyImpactMonotonicity(t *testing.T) {
	small, err := newTestGame(t, 1_000_000).Buy("a", "Apple", 100)
	if err != nil {
		t.Fatalf("small buy: %v", err)
	}
	big, err := newTestGame(t, 1_000_000).Buy("a", "Apple", 10000)
	if err != nil {
		t.Fatalf("big buy: %v", err)
	}
	if big.NewPrice <= small.NewPrice {
		t.Fatalf("larger order should move price more: %v vs %v", big.NewPrice, small.NewPrice)
	}

	// Same order against a deeper book moves the price less.
	thin, err := newTestGame(t, 1_000_000).Buy("a", "Ford", 1000)
	if err != nil {
		t.Fatalf("thin buy: %v", err)
	}
	thinShift := thin.NewPrice/thin.FillPrice - 1
	deep, err := newTestGame(t, 1_000_000).Buy("a", "Apple", 1000)
	if err != nil {
		t.Fatalf("deep buy: %v", err)
	}
	deepShift := deep.NewPrice/deep.FillPrice - 1
	if deepShift >= thinShift {
		t.Fatalf("deeper volume should dampen impact: %v vs %v", deepShift, thinShift)
	}
}

func TestBuyRejectedLeavesStateUntouched(t *testing.T) {
	g := newTestGame(t, 50)

	if _, err := g.Buy("alice", "Apple", 10); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	p := g.Portfolio("alice")
	approx(t, p.Cash, 50, 1e-9)
	if len(p.Positions) != 0 {
		t.Fatalf("no position should have opened: %+v", p.Positions)
	}
	stocks := g.Stocks()
	approx(t, stocks[0].Price, 100, 1e-9)
	if stocks[0].TotalVolume != 100000 {
		t.Fatalf("volume changed on rejected trade: %d", stocks[0].TotalVolume)
	}
}

func TestSellRequiresShares(t *testing.T) {
	g := newTestGame(t, 10_000)
	if _, err := g.Sell("alice", "Apple", 1); err != ErrInsufficientShares {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}

	if _, err := g.Buy("alice", "Apple", 10); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := g.Sell("alice", "Apple", 11); err != ErrInsufficientShares {
		t.Fatalf("expected ErrInsufficientShares selling more than held, got %v", err)
	}
	res, err := g.Sell("alice", "Apple", 10)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if res.Position != 0 {
		t.Fatalf("position = %d, want 0", res.Position)
	}
	approx(t, res.NewPrice, res.FillPrice, 1e-9)
}

func TestSellDoesNotMoveMarket(t *testing.T) {
	g := newTestGame(t, 10_000)

	if _, err := g.Buy("alice", "Apple", 10); err != nil {
		t.Fatalf("buy: %v", err)
	}
	before := g.Stocks()[0]

	res, err := g.Sell("alice", "Apple", 10)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	approx(t, res.FillPrice, before.Price, 1e-9)
	approx(t, res.NewPrice, before.Price, 1e-9)

	after := g.Stocks()[0]
	approx(t, after.Price, before.Price, 1e-9)
	if after.TotalVolume != before.TotalVolume {
		t.Fatalf("sell should not add volume: %d -> %d", before.TotalVolume, after.TotalVolume)
	}
}

func TestShortCreditsCashWithoutMovingPrice(t *testing.T) {
	g := newTestGame(t, 1000)

	res, err := g.Short("alice", "Apple", 50)
	if err != nil {
		t.Fatalf("short: %v", err)
	}
	approx(t, res.Cash, 1000+100*50, 1e-9)
	if res.Position != -50 {
		t.Fatalf("position = %d, want -50", res.Position)
	}
	approx(t, res.NewPrice, 100, 1e-9)
	if got := g.Stocks()[0].TotalVolume; got != 100000 {
		t.Fatalf("short should not add volume: %d", got)
	}
}

func TestBuyCoversShortWithoutCashCheck(t *testing.T) {
	g := newTestGame(t, 0)

	if _, err := g.Short("alice", "Apple", 100); err != nil {
		t.Fatalf("short: %v", err)
	}
	// Cash is 10000 from the short proceeds; the cover costs more after
	// the price moved, but covering a short never checks cash.
	g.mu.Lock()
	g.byName["Apple"].Price = 150
	g.mu.Unlock()

	res, err := g.Buy("alice", "Apple", 100)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if res.Position != 0 {
		t.Fatalf("position = %d, want 0", res.Position)
	}
	approx(t, res.Cash, 100*100-150*100, 1e-9)
}

func TestTradeValidation(t *testing.T) {
	g := newTestGame(t, 10_000)

	if _, err := g.Buy("alice", "Apple", 0); err != ErrInvalidQuantity {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := g.Sell("alice", "Apple", -5); err != ErrInvalidQuantity {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := g.Buy("alice", "Enron", 1); err != ErrUnknownStock {
		t.Fatalf("expected ErrUnknownStock, got %v", err)
	}
}

func TestPortfolioValuesShortsNegatively(t *testing.T) {
	g := newTestGame(t, 10_000)

	if _, err := g.Buy("alice", "Ford", 100); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := g.Short("alice", "Apple", 10); err != nil {
		t.Fatalf("short: %v", err)
	}

	p := g.Portfolio("alice")
	if len(p.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %+v", p.Positions)
	}
	approx(t, p.NetWorth, p.Cash+p.PortfolioValue, 1e-9)
	var appleValue float64
	for _, pos := range p.Positions {
		if pos.Stock == "Apple" {
			appleValue = pos.Value
		}
	}
	if appleValue >= 0 {
		t.Fatalf("short position should carry negative value: %v", appleValue)
	}
}
