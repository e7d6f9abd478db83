package arena

import (
	"time"

	"marketmania/internal/broadcast"
	"marketmania/internal/market"
)

// Start moves the game to Running and launches the round scheduler. Any
// call after the first is a no-op.
func (g *Game) Start() {
	g.mu.Lock()
	if g.status != StatusIdle {
		g.mu.Unlock()
		return
	}
	g.status = StatusRunning
	g.mu.Unlock()

	g.bus.Broadcast(g.cfg.RoomID, broadcast.EventGameStarted, map[string]any{
		"room_id":      g.cfg.RoomID,
		"total_rounds": g.cfg.TotalRounds,
		"round_every":  g.cfg.RoundEvery.Seconds(),
		"stocks":       market.Snapshot(g.stocks),
	})
	g.log.Info("game started", "room_id", g.cfg.RoomID, "rounds", g.cfg.TotalRounds, "round_every", g.cfg.RoundEvery)

	go g.run()
}

// run drives the round clock. A short grace period lets clients attach
// their listeners before round one lands; after that rounds fire on a
// fixed interval until the game finishes or is stopped.
func (g *Game) run() {
	grace := time.NewTimer(g.cfg.Grace)
	defer grace.Stop()
	select {
	case <-g.stop:
		return
	case <-grace.C:
	}
	if !g.tick() {
		return
	}

	ticker := time.NewTicker(g.cfg.RoundEvery)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			if !g.tick() {
				return
			}
		}
	}
}

// tick advances one round. It returns false once the game has finished
// so the scheduler loop exits.
func (g *Game) tick() bool {
	g.mu.Lock()
	if g.status != StatusRunning {
		g.mu.Unlock()
		return false
	}
	g.round++
	if g.round > g.cfg.TotalRounds {
		g.round = g.cfg.TotalRounds
		g.status = StatusFinished
		g.mu.Unlock()

		g.bus.Broadcast(g.cfg.RoomID, broadcast.EventGameOver, map[string]any{
			"room_id": g.cfg.RoomID,
		})
		g.log.Info("game over", "room_id", g.cfg.RoomID, "rounds", g.cfg.TotalRounds)
		if g.onFinish != nil {
			g.onFinish(g.cfg.RoomID)
		}
		return false
	}

	round := g.round
	drawn := g.engine.Advance(g.stocks, g.pending, g.companyPool)
	g.pending = drawn
	prices := market.Snapshot(g.stocks)
	g.mu.Unlock()

	g.bus.Broadcast(g.cfg.RoomID, broadcast.EventNewRound, map[string]any{
		"round":        round,
		"total_rounds": g.cfg.TotalRounds,
	})
	g.bus.Broadcast(g.cfg.RoomID, broadcast.EventNewsUpdate, map[string]any{
		"round":  round,
		"events": drawn,
		"news":   market.Notices(drawn),
	})
	g.bus.Broadcast(g.cfg.RoomID, broadcast.EventPriceUpdate, map[string]any{
		"round":  round,
		"stocks": prices,
	})
	return true
}
