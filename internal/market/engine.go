package market

import (
	mathrand "math/rand"
	"sync"
	"time"

	"marketmania/internal/catalog"
)

const (
	// MinPrice is the hard floor applied after every price mutation.
	MinPrice = 0.01

	// NoticesPerRound is how many event descriptors each tick draws.
	NoticesPerRound = 5

	// Weighted-choice bands for the three event tiers.
	companyEventProb    = 0.60
	generalEventProb    = 0.35
	historicalEventProb = 0.05
)

// Stock is the live, per-room price state. Price and TotalVolume mutate
// every round; the rest is carried over from the catalog.
type Stock struct {
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	PERatio     float64  `json:"pe_ratio"`
	Sectors     []string `json:"sectors"`
	TotalVolume int64    `json:"total_volume"`
	Volatility  float64  `json:"volatility"`
}

// FromCatalog copies reference data into fresh live stocks priced at base.
func FromCatalog(src []catalog.Stock) []*Stock {
	out := make([]*Stock, 0, len(src))
	for _, s := range src {
		sectors := make([]string, len(s.Sectors))
		copy(sectors, s.Sectors)
		out = append(out, &Stock{
			Name:        s.Name,
			Price:       s.BasePrice,
			PERatio:     s.PERatio,
			Sectors:     sectors,
			TotalVolume: s.TotalVolume,
			Volatility:  s.Volatility,
		})
	}
	return out
}

// Snapshot returns value copies safe to hand to encoders outside the
// room lock.
func Snapshot(stocks []*Stock) []Stock {
	out := make([]Stock, 0, len(stocks))
	for _, st := range stocks {
		out = append(out, *st)
	}
	return out
}

// ClampPrice keeps a mutated price on the strictly positive floor.
func ClampPrice(p float64) float64 {
	if p < MinPrice {
		return MinPrice
	}
	return p
}

// Engine draws and applies market events. One engine serves all rooms;
// per-room state (stocks, pending events, company pool) is owned by the
// caller and passed in.
type Engine struct {
	mu   sync.Mutex
	rand *mathrand.Rand
	lib  Library
}

func NewEngine(lib Library) *Engine {
	return &Engine{
		rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		lib:  lib,
	}
}

func newEngineSeeded(lib Library, seed int64) *Engine {
	return &Engine{
		rand: mathrand.New(mathrand.NewSource(seed)),
		lib:  lib,
	}
}

func (e *Engine) Library() Library {
	return e.lib
}

// Advance runs one round tick over a room's stocks: it applies the
// previous round's deferred events, draws the next notice batch, and
// rolls fresh per-stock noise. The returned events must be fed back as
// pending on the next call — their price effect lands one tick after
// their notices are published.
func (e *Engine) Advance(stocks []*Stock, pending []RoundEvent, companyPool []CompanyEvent) []RoundEvent {
	ApplyEvents(stocks, pending)

	drawn := make([]RoundEvent, 0, NoticesPerRound)
	for i := 0; i < NoticesPerRound; i++ {
		if ev, ok := e.drawOne(companyPool); ok {
			drawn = append(drawn, ev)
		}
	}

	for _, st := range stocks {
		st.Price = ClampPrice(st.Price * (1 + (e.roll()-0.5)*st.Volatility))
	}
	return drawn
}

// ApplyEvents applies each event's percent effect to the stocks it
// touches, flooring every result.
func ApplyEvents(stocks []*Stock, events []RoundEvent) {
	for _, ev := range events {
		for _, st := range stocks {
			pct, ok := ev.effectOn(st)
			if !ok {
				continue
			}
			st.Price = ClampPrice(st.Price * (1 + pct/100))
		}
	}
}

func (e *Engine) drawOne(companyPool []CompanyEvent) (RoundEvent, bool) {
	roll := e.roll()

	if roll < companyEventProb && len(companyPool) > 0 {
		ev := companyPool[e.intn(len(companyPool))]
		return RoundEvent{
			Kind:        KindCompany,
			Notice:      ev.Headline,
			Company:     ev.Company,
			PriceChange: ev.PriceChange,
		}, true
	}

	// An empty company pool falls through to the general tier rather
	// than failing the round.
	if (roll < companyEventProb+generalEventProb || len(e.lib.Historical) == 0) && len(e.lib.General) > 0 {
		ev := e.lib.General[e.intn(len(e.lib.General))]
		return RoundEvent{
			Kind:         KindSector,
			Notice:       ev.Headline,
			SectorImpact: ev.SectorImpact,
		}, true
	}

	if len(e.lib.Historical) > 0 {
		ev := e.lib.Historical[e.intn(len(e.lib.Historical))]
		return RoundEvent{
			Kind:         KindShock,
			Notice:       ev.Headline,
			MovePercent:  ev.MovePercent,
			SectorImpact: ev.SectorImpact,
		}, true
	}
	return RoundEvent{}, false
}

func (e *Engine) roll() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rand.Float64()
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rand.Intn(n)
}

// Notices flattens drawn events into the strings published to clients.
func Notices(events []RoundEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Notice)
	}
	return out
}
