package catalog

import (
	"fmt"
	mathrand "math/rand"
)

// Stock is static reference data. Live per-room prices are copies owned by
// the game state, never this catalog.
type Stock struct {
	Name        string   `json:"name"`
	BasePrice   float64  `json:"base_price"`
	PERatio     float64  `json:"pe_ratio"`
	Sectors     []string `json:"sectors"`
	TotalVolume int64    `json:"total_volume"`
	Volatility  float64  `json:"volatility"`
}

// Sector tags used across the catalog and the event library.
const (
	SectorTech    = "Tech"
	SectorAuto    = "Auto"
	SectorFinance = "Finance"
	SectorEnergy  = "Energy"
	SectorHealth  = "Health"
	SectorRetail  = "Retail"
)

var defaultStocks = []Stock{
	{Name: "Apple", BasePrice: 172.25, PERatio: 28, Sectors: []string{SectorTech, SectorRetail}, TotalVolume: 900_000, Volatility: 0.05},
	{Name: "Tesla", BasePrice: 184.57, PERatio: 35, Sectors: []string{SectorAuto, SectorTech}, TotalVolume: 650_000, Volatility: 0.12},
	{Name: "Microsoft", BasePrice: 427.56, PERatio: 30, Sectors: []string{SectorTech}, TotalVolume: 800_000, Volatility: 0.04},
	{Name: "Google", BasePrice: 177.85, PERatio: 26, Sectors: []string{SectorTech}, TotalVolume: 700_000, Volatility: 0.04},
	{Name: "JPMorgan", BasePrice: 201.50, PERatio: 12, Sectors: []string{SectorFinance}, TotalVolume: 500_000, Volatility: 0.06},
	{Name: "NVIDIA", BasePrice: 121.58, PERatio: 65, Sectors: []string{SectorTech}, TotalVolume: 1_100_000, Volatility: 0.15},
	{Name: "ExxonMobil", BasePrice: 113.40, PERatio: 13, Sectors: []string{SectorEnergy}, TotalVolume: 450_000, Volatility: 0.07},
	{Name: "Pfizer", BasePrice: 27.85, PERatio: 11, Sectors: []string{SectorHealth}, TotalVolume: 600_000, Volatility: 0.08},
	{Name: "Goldman Sachs", BasePrice: 452.10, PERatio: 15, Sectors: []string{SectorFinance}, TotalVolume: 280_000, Volatility: 0.09},
	{Name: "Ford", BasePrice: 12.05, PERatio: 7, Sectors: []string{SectorAuto}, TotalVolume: 750_000, Volatility: 0.10},
	{Name: "Walmart", BasePrice: 68.90, PERatio: 29, Sectors: []string{SectorRetail}, TotalVolume: 520_000, Volatility: 0.03},
	{Name: "NextEra", BasePrice: 74.20, PERatio: 22, Sectors: []string{SectorEnergy, SectorTech}, TotalVolume: 330_000, Volatility: 0.06},
}

// All returns a copy of the full catalog.
func All() []Stock {
	out := make([]Stock, len(defaultStocks))
	copy(out, defaultStocks)
	return out
}

// ByName looks a stock up in the catalog.
func ByName(name string) (Stock, error) {
	for _, s := range defaultStocks {
		if s.Name == name {
			return s, nil
		}
	}
	return Stock{}, fmt.Errorf("stock %q not in catalog", name)
}

// Pick draws n distinct stocks for a room. n outside [1, len(catalog)]
// yields the whole catalog.
func Pick(r *mathrand.Rand, n int) []Stock {
	all := All()
	if n <= 0 || n >= len(all) {
		return all
	}
	r.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return all[:n]
}
