package market

import (
	"math"
	"testing"

	"marketmania/internal/catalog"
)

func approx(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("got %v want %v (tolerance %v)", got, want, tol)
	}
}

func testStocks() []*Stock {
	return []*Stock{
		{Name: "Apple", Price: 100, Sectors: []string{catalog.SectorTech, catalog.SectorRetail}, TotalVolume: 100_000},
		{Name: "Ford", Price: 50, Sectors: []string{catalog.SectorAuto}, TotalVolume: 50_000},
	}
}

func TestApplyCompanyEventOnlyHitsNamedStock(t *testing.T) {
	stocks := testStocks()
	ApplyEvents(stocks, []RoundEvent{{Kind: KindCompany, Company: "Apple", PriceChange: 25}})
	approx(t, stocks[0].Price, 125, 1e-9)
	approx(t, stocks[1].Price, 50, 1e-9)
}

func TestApplySectorEventSumsMatchingTags(t *testing.T) {
	stocks := testStocks()
	ApplyEvents(stocks, []RoundEvent{{
		Kind:         KindSector,
		SectorImpact: map[string]float64{catalog.SectorTech: 10, catalog.SectorRetail: 5},
	}})
	// Apple carries both tags: +15% total. Ford matches neither tag.
	approx(t, stocks[0].Price, 115, 1e-9)
	approx(t, stocks[1].Price, 50, 1e-9)
}

func TestApplyShockEventSectorOverride(t *testing.T) {
	stocks := testStocks()
	ApplyEvents(stocks, []RoundEvent{{
		Kind:         KindShock,
		MovePercent:  -20,
		SectorImpact: map[string]float64{catalog.SectorTech: 10},
	}})
	// Apple's first matching sector override (+10%) replaces the flat move.
	approx(t, stocks[0].Price, 110, 1e-9)
	// Ford has no override and takes the flat -20%.
	approx(t, stocks[1].Price, 40, 1e-9)
}

func TestPriceFloorAfterEvent(t *testing.T) {
	stocks := []*Stock{{Name: "Penny", Price: 0.02, Sectors: []string{catalog.SectorTech}}}
	ApplyEvents(stocks, []RoundEvent{{
		Kind:         KindSector,
		SectorImpact: map[string]float64{catalog.SectorTech: -99.9},
	}})
	if stocks[0].Price != MinPrice {
		t.Fatalf("expected price floored at %v, got %v", MinPrice, stocks[0].Price)
	}
}

func TestAdvanceDefersEventEffectOneTick(t *testing.T) {
	lib := Library{
		General: []SectorEvent{{
			Headline:     "Tech rallies.",
			SectorImpact: map[string]float64{catalog.SectorTech: 10},
		}},
	}
	e := newEngineSeeded(lib, 42)
	// Zero volatility isolates the event path from per-stock noise.
	stocks := []*Stock{{Name: "Apple", Price: 100, Sectors: []string{catalog.SectorTech}, Volatility: 0, TotalVolume: 1}}

	drawn := e.Advance(stocks, nil, nil)
	if len(drawn) != NoticesPerRound {
		t.Fatalf("expected %d drawn events, got %d", NoticesPerRound, len(drawn))
	}
	// Notices are out, but the price must not have moved yet.
	approx(t, stocks[0].Price, 100, 1e-9)

	e.Advance(stocks, drawn, nil)
	// Five deferred +10% hits land on the next tick.
	approx(t, stocks[0].Price, 100*math.Pow(1.10, 5), 1e-6)
}

func TestEmptyCompanyPoolFallsThroughToGeneral(t *testing.T) {
	e := newEngineSeeded(DefaultLibrary(), 7)
	for i := 0; i < 200; i++ {
		ev, ok := e.drawOne(nil)
		if !ok {
			t.Fatalf("draw %d produced no event", i)
		}
		if ev.Kind == KindCompany {
			t.Fatalf("draw %d produced a company event from an empty pool", i)
		}
	}
}

func TestWeightedTierDistribution(t *testing.T) {
	lib := DefaultLibrary()
	e := newEngineSeeded(lib, 99)
	pool := lib.CompanyPoolFor(catalog.All())
	counts := map[EventKind]int{}
	const draws = 5000
	for i := 0; i < draws; i++ {
		ev, ok := e.drawOne(pool)
		if !ok {
			t.Fatalf("draw %d produced no event", i)
		}
		counts[ev.Kind]++
	}
	if counts[KindCompany] == 0 || counts[KindSector] == 0 || counts[KindShock] == 0 {
		t.Fatalf("expected all tiers to appear, got %v", counts)
	}
	company := float64(counts[KindCompany]) / draws
	if company < 0.55 || company > 0.65 {
		t.Fatalf("company tier frequency %v outside expected band around 0.60", company)
	}
	shock := float64(counts[KindShock]) / draws
	if shock > 0.10 {
		t.Fatalf("historical tier frequency %v implausibly high", shock)
	}
}

func TestAdvanceNoiseRespectsFloor(t *testing.T) {
	e := newEngineSeeded(DefaultLibrary(), 3)
	stocks := []*Stock{{Name: "Penny", Price: 0.011, Sectors: []string{catalog.SectorTech}, Volatility: 0.99, TotalVolume: 1}}
	for i := 0; i < 500; i++ {
		e.Advance(stocks, nil, nil)
		if stocks[0].Price < MinPrice {
			t.Fatalf("price %v fell below floor on iteration %d", stocks[0].Price, i)
		}
	}
}

func TestCompanyPoolFor(t *testing.T) {
	lib := DefaultLibrary()
	room := []catalog.Stock{{Name: "NVIDIA"}, {Name: "Ford"}}
	pool := lib.CompanyPoolFor(room)
	if len(pool) == 0 {
		t.Fatalf("expected a non-empty pool for catalog names")
	}
	for _, ev := range pool {
		if ev.Company != "NVIDIA" && ev.Company != "Ford" {
			t.Fatalf("pool leaked event for absent company %q", ev.Company)
		}
	}
}
