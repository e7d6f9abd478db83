package score

import (
	"context"
	"errors"
	"testing"
)

func TestRoundScoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(NewMemoryStore(), nil)

	first := RoundScore{GameID: "g1", UserID: "alice", Round: 1, Cash: 5000, PortfolioValue: 6000, NetWorth: 11000}
	if err := r.SubmitRoundScore(ctx, first); err != nil {
		t.Fatalf("submit: %v", err)
	}
	second := first
	second.NetWorth = 11500
	if err := r.SubmitRoundScore(ctx, second); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	rows, err := r.RoundLeaderboard(ctx, "g1", 1)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(rows))
	}
	if rows[0].NetWorth != 11500 {
		t.Fatalf("expected latest submission to win, got %v", rows[0].NetWorth)
	}
}

func TestRoundScoreRejectsBadRound(t *testing.T) {
	r := NewReconciler(NewMemoryStore(), nil)
	err := r.SubmitRoundScore(context.Background(), RoundScore{GameID: "g1", UserID: "alice", Round: 0})
	if !errors.Is(err, ErrInvalidRound) {
		t.Fatalf("expected ErrInvalidRound for round 0, got %v", err)
	}
}

func TestRoundLeaderboardSortedDescending(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(NewMemoryStore(), nil)

	subs := []RoundScore{
		{GameID: "g1", UserID: "alice", Round: 2, NetWorth: 9000},
		{GameID: "g1", UserID: "bob", Round: 2, NetWorth: 12000},
		{GameID: "g1", UserID: "carol", Round: 2, NetWorth: 9000},
		{GameID: "g1", UserID: "dave", Round: 1, NetWorth: 99999},
	}
	for _, s := range subs {
		if err := r.SubmitRoundScore(ctx, s); err != nil {
			t.Fatalf("submit %s: %v", s.UserID, err)
		}
	}

	rows, err := r.RoundLeaderboard(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows for round 2, got %d", len(rows))
	}
	if rows[0].UserID != "bob" {
		t.Fatalf("expected bob first, got %s", rows[0].UserID)
	}
	// alice and carol tie at 9000; alice submitted first.
	if rows[1].UserID != "alice" || rows[2].UserID != "carol" {
		t.Fatalf("tie not broken by submission order: %s, %s", rows[1].UserID, rows[2].UserID)
	}
}

func TestFinalRanksDenseAndRecomputed(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(NewMemoryStore(), nil)

	if err := r.SubmitFinalScore(ctx, "g1", "alice", 12000); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if err := r.SubmitFinalScore(ctx, "g1", "bob", 9000); err != nil {
		t.Fatalf("bob: %v", err)
	}

	rows, err := r.FinalLeaderboard(ctx, "g1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 2 || rows[0].UserID != "alice" || rows[0].FinalRank != 1 || rows[1].FinalRank != 2 {
		t.Fatalf("unexpected initial ranking: %+v", rows)
	}

	// A later, higher submission reranks everyone.
	if err := r.SubmitFinalScore(ctx, "g1", "carol", 15000); err != nil {
		t.Fatalf("carol: %v", err)
	}
	rows, err = r.FinalLeaderboard(ctx, "g1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []struct {
		user string
		rank int
	}{{"carol", 1}, {"alice", 2}, {"bob", 3}}
	for i, w := range want {
		if rows[i].UserID != w.user || rows[i].FinalRank != w.rank {
			t.Fatalf("row %d: got %s rank %d, want %s rank %d", i, rows[i].UserID, rows[i].FinalRank, w.user, w.rank)
		}
	}

	// Ranks stay a dense 1..N permutation.
	seen := map[int]bool{}
	for _, row := range rows {
		seen[row.FinalRank] = true
	}
	for i := 1; i <= len(rows); i++ {
		if !seen[i] {
			t.Fatalf("rank %d missing from %v", i, rows)
		}
	}
}

func TestFinalScoreResubmissionKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(NewMemoryStore(), nil)

	if err := r.SubmitFinalScore(ctx, "g1", "alice", 10000); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := r.SubmitFinalScore(ctx, "g1", "alice", 10500); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	rows, err := r.FinalLeaderboard(ctx, "g1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].FinalNetWorth != 10500 || rows[0].FinalRank != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
