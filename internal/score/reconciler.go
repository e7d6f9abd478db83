package score

import (
	"context"
	"errors"
	"log/slog"
	"sort"
)

var ErrInvalidRound = errors.New("round number must be positive")

// Reconciler collects per-round net-worth submissions and serves the
// round and final leaderboards. Ranking is a full O(n) recompute per
// final submission — game populations are bounded by room size, and the
// recompute self-heals as stragglers submit late.
type Reconciler struct {
	store Store
	log   *slog.Logger
}

func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, log: logger}
}

func (r *Reconciler) SubmitRoundScore(ctx context.Context, s RoundScore) error {
	if s.Round <= 0 {
		return ErrInvalidRound
	}
	if err := r.store.UpsertRoundScore(ctx, s); err != nil {
		return err
	}
	r.log.Debug("round score recorded", "game_id", s.GameID, "user_id", s.UserID, "round", s.Round, "net_worth", s.NetWorth)
	return nil
}

// RoundLeaderboard returns the round's submissions sorted by net worth
// descending; ties keep submission order. An empty result is a valid
// transient state while players are still submitting.
func (r *Reconciler) RoundLeaderboard(ctx context.Context, gameID string, round int) ([]RoundScore, error) {
	rows, err := r.store.RoundScores(ctx, gameID, round)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].NetWorth > rows[j].NetWorth
	})
	return rows, nil
}

// SubmitFinalScore upserts the player's final net worth and recomputes
// dense ranks for every participant who has submitted so far.
func (r *Reconciler) SubmitFinalScore(ctx context.Context, gameID, userID string, finalNetWorth float64) error {
	if err := r.store.UpsertFinalScore(ctx, FinalScore{
		GameID:        gameID,
		UserID:        userID,
		FinalNetWorth: finalNetWorth,
	}); err != nil {
		return err
	}
	return r.RecomputeFinalRanks(ctx, gameID)
}

// RecomputeFinalRanks reranks all submitted finals: net worth descending,
// ties broken by submission order, ranks dense from 1. Players who never
// submit simply stay absent; the next submission reranks everyone again.
func (r *Reconciler) RecomputeFinalRanks(ctx context.Context, gameID string) error {
	rows, err := r.store.FinalScores(ctx, gameID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FinalNetWorth > rows[j].FinalNetWorth
	})
	ranks := make(map[string]int, len(rows))
	for i, row := range rows {
		ranks[row.UserID] = i + 1
	}
	if err := r.store.SetFinalRanks(ctx, gameID, ranks); err != nil {
		return err
	}
	r.log.Info("final ranks recomputed", "game_id", gameID, "participants", len(rows))
	return nil
}

// FinalLeaderboard returns ranked finals, best rank first.
func (r *Reconciler) FinalLeaderboard(ctx context.Context, gameID string) ([]FinalScore, error) {
	rows, err := r.store.FinalScores(ctx, gameID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FinalRank < rows[j].FinalRank
	})
	return rows, nil
}
