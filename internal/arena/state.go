package arena

import (
	"log/slog"
	"sync"
	"time"

	"marketmania/internal/broadcast"
	"marketmania/internal/catalog"
	"marketmania/internal/market"
)

// Status is the room lifecycle. A game is created Idle, moves to Running
// exactly once, and ends Finished. There is no way back.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

// Config fixes a game's parameters at creation time.
type Config struct {
	RoomID      string
	TotalRounds int
	RoundEvery  time.Duration
	Grace       time.Duration
	InitialCash float64
	Stocks      []catalog.Stock
}

// Game owns all live state for one room: prices, the deferred event
// queue, and every player's cash and positions. All access goes through
// the mutex; the scheduler goroutine and trade handlers share it.
type Game struct {
	cfg Config

	mu        sync.Mutex
	status    Status
	round     int
	stocks    []*market.Stock
	byName    map[string]*market.Stock
	pending   []market.RoundEvent
	cash      map[string]float64
	positions map[string]map[string]int64

	companyPool []market.CompanyEvent
	engine      *market.Engine
	bus         broadcast.Broadcaster
	log         *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	onFinish func(roomID string)
}

func NewGame(cfg Config, engine *market.Engine, bus broadcast.Broadcaster, logger *slog.Logger, onFinish func(roomID string)) *Game {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Second
	}
	stocks := market.FromCatalog(cfg.Stocks)
	byName := make(map[string]*market.Stock, len(stocks))
	for _, st := range stocks {
		byName[st.Name] = st
	}
	return &Game{
		cfg:         cfg,
		status:      StatusIdle,
		stocks:      stocks,
		byName:      byName,
		cash:        make(map[string]float64),
		positions:   make(map[string]map[string]int64),
		companyPool: engine.Library().CompanyPoolFor(cfg.Stocks),
		engine:      engine,
		bus:         bus,
		log:         logger,
		stop:        make(chan struct{}),
		onFinish:    onFinish,
	}
}

func (g *Game) RoomID() string { return g.cfg.RoomID }

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Game) Round() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// Stocks returns a point-in-time copy of the room's prices.
func (g *Game) Stocks() []market.Stock {
	g.mu.Lock()
	defer g.mu.Unlock()
	return market.Snapshot(g.stocks)
}

// Stop tears the scheduler down. Safe to call any number of times, from
// any goroutine, in any state.
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// cashOf lazily seats a player with the room's starting cash. Callers
// hold g.mu.
func (g *Game) cashOf(userID string) float64 {
	c, ok := g.cash[userID]
	if !ok {
		c = g.cfg.InitialCash
		g.cash[userID] = c
	}
	return c
}

func (g *Game) positionOf(userID, stock string) int64 {
	pos, ok := g.positions[userID]
	if !ok {
		return 0
	}
	return pos[stock]
}

func (g *Game) setPosition(userID, stock string, qty int64) {
	pos, ok := g.positions[userID]
	if !ok {
		pos = make(map[string]int64)
		g.positions[userID] = pos
	}
	if qty == 0 {
		delete(pos, stock)
		return
	}
	pos[stock] = qty
}
