package score

import (
	"context"
	"time"
)

// RoundScore is one player's self-reported standing for one round.
// (gameID, userID, round) is the unique key; resubmission overwrites.
type RoundScore struct {
	GameID         string    `json:"game_id"`
	UserID         string    `json:"user_id"`
	Round          int       `json:"round_number"`
	Cash           float64   `json:"cash"`
	PortfolioValue float64   `json:"portfolio_value"`
	NetWorth       float64   `json:"net_worth"`
	SubmittedAt    time.Time `json:"submitted_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FinalScore is one player's end-of-game result. Rank is backfilled by
// the reconciler after every submission.
type FinalScore struct {
	GameID        string    `json:"game_id"`
	UserID        string    `json:"user_id"`
	FinalNetWorth float64   `json:"final_net_worth"`
	FinalRank     int       `json:"final_rank"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Store is the durable score storage the reconciler runs on. Round and
// final listings come back in first-submission order so ties stay stable.
type Store interface {
	UpsertRoundScore(ctx context.Context, s RoundScore) error
	RoundScores(ctx context.Context, gameID string, round int) ([]RoundScore, error)
	UpsertFinalScore(ctx context.Context, s FinalScore) error
	FinalScores(ctx context.Context, gameID string) ([]FinalScore, error)
	SetFinalRanks(ctx context.Context, gameID string, ranks map[string]int) error
}
