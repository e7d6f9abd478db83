package score

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists scores with upsert-on-conflict semantics so a
// slow retry and a fresh submission for the same key never race into
// duplicate rows.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) UpsertRoundScore(ctx context.Context, s RoundScore) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO game.round_scores (game_id, user_id, round_number, cash, portfolio_value, net_worth, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (game_id, user_id, round_number) DO UPDATE
		SET cash = EXCLUDED.cash,
		    portfolio_value = EXCLUDED.portfolio_value,
		    net_worth = EXCLUDED.net_worth,
		    updated_at = now()
	`, s.GameID, s.UserID, s.Round, s.Cash, s.PortfolioValue, s.NetWorth)
	if err != nil {
		return fmt.Errorf("upsert round score: %w", err)
	}
	return nil
}

func (p *PostgresStore) RoundScores(ctx context.Context, gameID string, round int) ([]RoundScore, error) {
	rows, err := p.db.Query(ctx, `
		SELECT game_id, user_id, round_number, cash, portfolio_value, net_worth, submitted_at, updated_at
		FROM game.round_scores
		WHERE game_id = $1 AND round_number = $2
		ORDER BY submitted_at ASC, user_id ASC
	`, gameID, round)
	if err != nil {
		return nil, fmt.Errorf("round scores: %w", err)
	}
	defer rows.Close()

	var out []RoundScore
	for rows.Next() {
		var s RoundScore
		if err := rows.Scan(&s.GameID, &s.UserID, &s.Round, &s.Cash, &s.PortfolioValue, &s.NetWorth, &s.SubmittedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpsertFinalScore(ctx context.Context, s FinalScore) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO game.final_scores (game_id, user_id, final_net_worth, final_rank, submitted_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (game_id, user_id) DO UPDATE
		SET final_net_worth = EXCLUDED.final_net_worth
	`, s.GameID, s.UserID, s.FinalNetWorth)
	if err != nil {
		return fmt.Errorf("upsert final score: %w", err)
	}
	return nil
}

func (p *PostgresStore) FinalScores(ctx context.Context, gameID string) ([]FinalScore, error) {
	rows, err := p.db.Query(ctx, `
		SELECT game_id, user_id, final_net_worth, final_rank, submitted_at
		FROM game.final_scores
		WHERE game_id = $1
		ORDER BY submitted_at ASC, user_id ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("final scores: %w", err)
	}
	defer rows.Close()

	var out []FinalScore
	for rows.Next() {
		var s FinalScore
		if err := rows.Scan(&s.GameID, &s.UserID, &s.FinalNetWorth, &s.FinalRank, &s.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SetFinalRanks(ctx context.Context, gameID string, ranks map[string]int) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for userID, rank := range ranks {
		if _, err := tx.Exec(ctx, `
			UPDATE game.final_scores
			SET final_rank = $1
			WHERE game_id = $2 AND user_id = $3
		`, rank, gameID, userID); err != nil {
			return fmt.Errorf("set final rank: %w", err)
		}
	}
	return tx.Commit(ctx)
}
