package arena

import (
	"errors"
	"log/slog"
	"sync"

	"marketmania/internal/broadcast"
	"marketmania/internal/market"
)

var (
	ErrGameNotFound   = errors.New("no game running for room")
	ErrAlreadyRunning = errors.New("game already running for room")
)

// Registry maps room ids to their live games. Games exist only while a
// room is playing; durable results live with the score store.
type Registry struct {
	engine *market.Engine
	bus    broadcast.Broadcaster
	log    *slog.Logger

	// OnFinish runs once when a game plays its last round, before the
	// registry entry is removed.
	OnFinish func(roomID string)

	mu    sync.Mutex
	games map[string]*Game
}

func NewRegistry(engine *market.Engine, bus broadcast.Broadcaster, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		engine: engine,
		bus:    bus,
		log:    logger,
		games:  make(map[string]*Game),
	}
}

// Create registers a new game for the room. A room hosts at most one
// game at a time.
func (r *Registry) Create(cfg Config) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[cfg.RoomID]; ok {
		return nil, ErrAlreadyRunning
	}
	g := NewGame(cfg, r.engine, r.bus, r.log, func(roomID string) {
		if r.OnFinish != nil {
			r.OnFinish(roomID)
		}
		r.Destroy(roomID)
	})
	r.games[cfg.RoomID] = g
	return g, nil
}

func (r *Registry) Get(roomID string) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[roomID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// Destroy stops the room's game and drops it from the registry. Calling
// it for an absent room is a no-op.
func (r *Registry) Destroy(roomID string) {
	r.mu.Lock()
	g, ok := r.games[roomID]
	if ok {
		delete(r.games, roomID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	g.Stop()
	r.log.Info("game destroyed", "room_id", roomID)
}

// Count reports how many games are live.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}
