package arena

import (
	"testing"
	"time"

	"marketmania/internal/market"
)

func testConfig(roomID string) Config {
	return Config{
		RoomID:      roomID,
		TotalRounds: 5,
		RoundEvery:  time.Minute,
		Grace:       time.Millisecond,
		InitialCash: 10000,
		Stocks:      testStocks(),
	}
}

func TestRegistryOneGamePerRoom(t *testing.T) {
	reg := NewRegistry(market.NewEngine(market.DefaultLibrary()), &recorder{}, nil)

	g, err := reg.Create(testConfig("room-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.RoomID() != "room-1" {
		t.Fatalf("room id = %q", g.RoomID())
	}
	if _, err := reg.Create(testConfig("room-1")); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if _, err := reg.Create(testConfig("room-2")); err != nil {
		t.Fatalf("second room: %v", err)
	}
	if reg.Count() != 2 {
		t.Fatalf("count = %d, want 2", reg.Count())
	}
}

func TestRegistryGetUnknownRoom(t *testing.T) {
	reg := NewRegistry(market.NewEngine(market.DefaultLibrary()), &recorder{}, nil)
	if _, err := reg.Get("nope"); err != ErrGameNotFound {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestRegistryDestroyIsIdempotent(t *testing.T) {
	reg := NewRegistry(market.NewEngine(market.DefaultLibrary()), &recorder{}, nil)
	if _, err := reg.Create(testConfig("room-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	reg.Destroy("room-1")
	reg.Destroy("room-1")
	reg.Destroy("never-existed")

	if _, err := reg.Get("room-1"); err != ErrGameNotFound {
		t.Fatalf("destroyed game still resolvable: %v", err)
	}
	if reg.Count() != 0 {
		t.Fatalf("count = %d, want 0", reg.Count())
	}

	// The slot frees up for a rematch.
	if _, err := reg.Create(testConfig("room-1")); err != nil {
		t.Fatalf("recreate after destroy: %v", err)
	}
}

func TestFinishedGameRemovesItself(t *testing.T) {
	reg := NewRegistry(market.NewEngine(market.DefaultLibrary()), &recorder{}, nil)
	var finishedRoom string
	reg.OnFinish = func(roomID string) { finishedRoom = roomID }

	cfg := testConfig("room-1")
	cfg.TotalRounds = 1
	cfg.RoundEvery = 10 * time.Millisecond
	cfg.Grace = 2 * time.Millisecond
	g, err := reg.Create(cfg)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	g.Start()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := reg.Get("room-1"); err == ErrGameNotFound {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("finished game never left the registry")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if finishedRoom != "room-1" {
		t.Fatalf("finish hook saw %q", finishedRoom)
	}
}

func TestTradesRejectedAfterGameOver(t *testing.T) {
	g := NewGame(testConfig("room-1"), market.NewEngine(market.DefaultLibrary()), &recorder{}, nil, nil)
	g.mu.Lock()
	g.status = StatusFinished
	g.mu.Unlock()

	if _, err := g.Buy("alice", "Apple", 1); err != ErrGameOver {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if _, err := g.Sell("alice", "Apple", 1); err != ErrGameOver {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if _, err := g.Short("alice", "Apple", 1); err != ErrGameOver {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}
