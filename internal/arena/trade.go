package arena

import (
	"errors"
	"math"

	"marketmania/internal/market"
)

var (
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrUnknownStock       = errors.New("stock not traded in this room")
	ErrInsufficientFunds  = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrGameOver           = errors.New("game is over")
)

// priceImpactK scales how hard an order of a given size moves the price
// relative to the stock's traded volume.
const priceImpactK = 0.05

// TradeResult reports the fill: the price paid and the player's state
// after the trade.
type TradeResult struct {
	Stock     string  `json:"stock"`
	Side      string  `json:"side"`
	Quantity  int64   `json:"quantity"`
	FillPrice float64 `json:"fill_price"`
	NewPrice  float64 `json:"new_price"`
	Cash      float64 `json:"cash"`
	Position  int64   `json:"position"`
}

// Position is one holding inside a portfolio view. Negative quantities
// are open shorts.
type Position struct {
	Stock    string  `json:"stock"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
}

type PortfolioView struct {
	UserID         string     `json:"user_id"`
	Cash           float64    `json:"cash"`
	Positions      []Position `json:"positions"`
	PortfolioValue float64    `json:"portfolio_value"`
	NetWorth       float64    `json:"net_worth"`
}

// Buy fills at the current price and then moves the price up with the
// order's market impact. When the player holds a short, buying covers it
// with no cash check; the proceeds of the short already sit in cash.
func (g *Game) Buy(userID, stock string, qty int64) (TradeResult, error) {
	if qty <= 0 {
		return TradeResult{}, ErrInvalidQuantity
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusFinished {
		return TradeResult{}, ErrGameOver
	}
	st, ok := g.byName[stock]
	if !ok {
		return TradeResult{}, ErrUnknownStock
	}

	fill := st.Price
	cost := fill * float64(qty)
	cash := g.cashOf(userID)
	held := g.positionOf(userID, stock)
	if held >= 0 && cash < cost {
		return TradeResult{}, ErrInsufficientFunds
	}

	g.cash[userID] = cash - cost
	g.setPosition(userID, stock, held+qty)
	applyImpact(st, qty)

	return TradeResult{
		Stock:     stock,
		Side:      "buy",
		Quantity:  qty,
		FillPrice: fill,
		NewPrice:  st.Price,
		Cash:      g.cash[userID],
		Position:  held + qty,
	}, nil
}

// Sell requires the full long position to be on hand and pays out at
// the current price. Only buys move the market; a sell leaves price and
// volume untouched.
func (g *Game) Sell(userID, stock string, qty int64) (TradeResult, error) {
	if qty <= 0 {
		return TradeResult{}, ErrInvalidQuantity
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusFinished {
		return TradeResult{}, ErrGameOver
	}
	st, ok := g.byName[stock]
	if !ok {
		return TradeResult{}, ErrUnknownStock
	}

	held := g.positionOf(userID, stock)
	if held < qty {
		return TradeResult{}, ErrInsufficientShares
	}

	fill := st.Price
	g.cash[userID] = g.cashOf(userID) + fill*float64(qty)
	g.setPosition(userID, stock, held-qty)

	return TradeResult{
		Stock:     stock,
		Side:      "sell",
		Quantity:  qty,
		FillPrice: fill,
		NewPrice:  st.Price,
		Cash:      g.cash[userID],
		Position:  held - qty,
	}, nil
}

// Short credits the proceeds up front and opens (or deepens) a negative
// position. There is no margin requirement and no market impact; the
// borrowed shares never hit the order book.
func (g *Game) Short(userID, stock string, qty int64) (TradeResult, error) {
	if qty <= 0 {
		return TradeResult{}, ErrInvalidQuantity
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusFinished {
		return TradeResult{}, ErrGameOver
	}
	st, ok := g.byName[stock]
	if !ok {
		return TradeResult{}, ErrUnknownStock
	}

	fill := st.Price
	held := g.positionOf(userID, stock)
	g.cash[userID] = g.cashOf(userID) + fill*float64(qty)
	g.setPosition(userID, stock, held-qty)

	return TradeResult{
		Stock:     stock,
		Side:      "short",
		Quantity:  qty,
		FillPrice: fill,
		NewPrice:  st.Price,
		Cash:      g.cash[userID],
		Position:  held - qty,
	}, nil
}

// Portfolio values every open position (shorts included, as negative
// value) at current prices.
func (g *Game) Portfolio(userID string) PortfolioView {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := PortfolioView{
		UserID: userID,
		Cash:   g.cashOf(userID),
	}
	for stock, qty := range g.positions[userID] {
		st := g.byName[stock]
		if st == nil {
			continue
		}
		value := st.Price * float64(qty)
		out.Positions = append(out.Positions, Position{
			Stock:    stock,
			Quantity: qty,
			Price:    st.Price,
			Value:    value,
		})
		out.PortfolioValue += value
	}
	out.NetWorth = out.Cash + out.PortfolioValue
	return out
}

// applyImpact moves the price up by k*sqrt(qty/volume), using the
// volume before this order joins it, then records the traded quantity.
// Buys are the only side that moves the market.
func applyImpact(st *market.Stock, qty int64) {
	if st.TotalVolume > 0 {
		shift := priceImpactK * math.Sqrt(float64(qty)/float64(st.TotalVolume))
		st.Price = market.ClampPrice(st.Price * (1 + shift))
	}
	st.TotalVolume += qty
}
