package market

import "marketmania/internal/catalog"

type EventKind string

const (
	KindCompany EventKind = "company"
	KindSector  EventKind = "sector"
	KindShock   EventKind = "shock"
)

// CompanyEvent moves a single named stock by PriceChange percent.
type CompanyEvent struct {
	Company     string
	Headline    string
	PriceChange float64
}

// SectorEvent moves every stock carrying a tagged sector; a stock with
// several matching tags takes the sum of their impacts.
type SectorEvent struct {
	Headline     string
	SectorImpact map[string]float64
}

// ShockEvent replays a historical crash or rally: MovePercent hits every
// stock unless one of the stock's sectors has an explicit override.
type ShockEvent struct {
	Headline     string
	MovePercent  float64
	SectorImpact map[string]float64
}

type Library struct {
	Company    []CompanyEvent
	General    []SectorEvent
	Historical []ShockEvent
}

// CompanyPoolFor filters the company pool down to events naming a stock
// that is actually present in the room.
func (l Library) CompanyPoolFor(stocks []catalog.Stock) []CompanyEvent {
	present := make(map[string]bool, len(stocks))
	for _, s := range stocks {
		present[s.Name] = true
	}
	var out []CompanyEvent
	for _, ev := range l.Company {
		if present[ev.Company] {
			out = append(out, ev)
		}
	}
	return out
}

// RoundEvent is one drawn event descriptor. Its notice is published the
// round it is drawn; its price effect is held until the next tick.
type RoundEvent struct {
	Kind         EventKind `json:"kind"`
	Notice       string    `json:"notice"`
	Company      string    `json:"company,omitempty"`
	PriceChange  float64   `json:"price_change,omitempty"`
	SectorImpact map[string]float64 `json:"sector_impact,omitempty"`
	MovePercent  float64   `json:"move_percent,omitempty"`
}

func (ev RoundEvent) effectOn(st *Stock) (float64, bool) {
	switch ev.Kind {
	case KindCompany:
		if st.Name != ev.Company {
			return 0, false
		}
		return ev.PriceChange, true
	case KindSector:
		sum := 0.0
		matched := false
		for _, sec := range st.Sectors {
			if v, ok := ev.SectorImpact[sec]; ok {
				sum += v
				matched = true
			}
		}
		return sum, matched
	case KindShock:
		pct := ev.MovePercent
		for _, sec := range st.Sectors {
			if v, ok := ev.SectorImpact[sec]; ok {
				// First matching sector wins; remaining tags are ignored.
				pct = v
				break
			}
		}
		return pct, true
	}
	return 0, false
}

func DefaultLibrary() Library {
	return Library{
		Company: []CompanyEvent{
			{Company: "Apple", Headline: "Apple unveils a record-breaking product line; investors pile in.", PriceChange: 12},
			{Company: "Apple", Headline: "Apple faces an antitrust probe over app store fees.", PriceChange: -9},
			{Company: "Tesla", Headline: "Tesla smashes quarterly delivery targets.", PriceChange: 18},
			{Company: "Tesla", Headline: "Tesla recalls thousands of vehicles over software faults.", PriceChange: -14},
			{Company: "Microsoft", Headline: "Microsoft lands a massive government cloud contract.", PriceChange: 10},
			{Company: "Google", Headline: "Google's ad revenue disappoints for the second quarter running.", PriceChange: -8},
			{Company: "JPMorgan", Headline: "JPMorgan posts record trading profits.", PriceChange: 9},
			{Company: "NVIDIA", Headline: "A revolutionary new chip design has been announced by NVIDIA, investors are ecstatic!", PriceChange: 25},
			{Company: "NVIDIA", Headline: "NVIDIA export restrictions tighten; analysts cut forecasts.", PriceChange: -12},
			{Company: "ExxonMobil", Headline: "ExxonMobil strikes a major offshore oil field.", PriceChange: 11},
			{Company: "Pfizer", Headline: "Pfizer's new treatment clears phase-3 trials early.", PriceChange: 16},
			{Company: "Goldman Sachs", Headline: "Goldman Sachs hit with a record compliance fine.", PriceChange: -10},
			{Company: "Ford", Headline: "Ford's EV line sells out its entire first production year.", PriceChange: 13},
			{Company: "Walmart", Headline: "Walmart raises guidance on booming grocery margins.", PriceChange: 7},
			{Company: "NextEra", Headline: "NextEra wins the largest grid-storage tender in history.", PriceChange: 14},
		},
		General: []SectorEvent{
			{Headline: "Major tech conference unveils groundbreaking AI. Tech stocks are soaring!", SectorImpact: map[string]float64{catalog.SectorTech: 15}},
			{Headline: "Interest rates are unexpectedly hiked by the Fed. The entire market is feeling the pressure.", SectorImpact: map[string]float64{catalog.SectorTech: -8, catalog.SectorAuto: -8, catalog.SectorFinance: -8, catalog.SectorEnergy: -8, catalog.SectorHealth: -8, catalog.SectorRetail: -8}},
			{Headline: "New government regulations impact the auto industry, causing investor uncertainty.", SectorImpact: map[string]float64{catalog.SectorAuto: -12}},
			{Headline: "Global supply chain issues have eased, boosting manufacturers across the board.", SectorImpact: map[string]float64{catalog.SectorTech: 5, catalog.SectorAuto: 5, catalog.SectorRetail: 5}},
			{Headline: "Major banks report record profits, leading to a rally in the finance sector.", SectorImpact: map[string]float64{catalog.SectorFinance: 10}},
			{Headline: "Crude prices spike after supply cuts; energy rallies while autos suffer.", SectorImpact: map[string]float64{catalog.SectorEnergy: 9, catalog.SectorAuto: -5}},
			{Headline: "A breakthrough obesity drug lifts the whole health sector.", SectorImpact: map[string]float64{catalog.SectorHealth: 11}},
			{Headline: "Consumer confidence slumps; retailers brace for a weak quarter.", SectorImpact: map[string]float64{catalog.SectorRetail: -7}},
		},
		Historical: []ShockEvent{
			{Headline: "Black Monday strikes again: panic selling sweeps every exchange.", MovePercent: -20},
			{Headline: "Dot-com mania returns; the market melts up on pure momentum.", MovePercent: 12, SectorImpact: map[string]float64{catalog.SectorTech: 25}},
			{Headline: "A 2008-style credit crunch freezes lending overnight.", MovePercent: -15, SectorImpact: map[string]float64{catalog.SectorFinance: -30}},
			{Headline: "An oil embargo sends energy vertical and everything else down.", MovePercent: -10, SectorImpact: map[string]float64{catalog.SectorEnergy: 22}},
			{Headline: "A global pandemic scare empties the streets and the order books.", MovePercent: -18, SectorImpact: map[string]float64{catalog.SectorHealth: 8, catalog.SectorTech: -5}},
		},
	}
}
