package score

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps scores in process memory. It backs tests and
// single-node setups without a database.
type MemoryStore struct {
	mu     sync.Mutex
	rounds map[string][]*RoundScore // keyed by gameID, submission order
	finals map[string][]*FinalScore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds: make(map[string][]*RoundScore),
		finals: make(map[string][]*FinalScore),
	}
}

func (m *MemoryStore) UpsertRoundScore(_ context.Context, s RoundScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, row := range m.rounds[s.GameID] {
		if row.UserID == s.UserID && row.Round == s.Round {
			row.Cash = s.Cash
			row.PortfolioValue = s.PortfolioValue
			row.NetWorth = s.NetWorth
			row.UpdatedAt = now
			return nil
		}
	}
	s.SubmittedAt = now
	s.UpdatedAt = now
	m.rounds[s.GameID] = append(m.rounds[s.GameID], &s)
	return nil
}

func (m *MemoryStore) RoundScores(_ context.Context, gameID string, round int) ([]RoundScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RoundScore
	for _, row := range m.rounds[gameID] {
		if row.Round == round {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertFinalScore(_ context.Context, s FinalScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.finals[s.GameID] {
		if row.UserID == s.UserID {
			row.FinalNetWorth = s.FinalNetWorth
			return nil
		}
	}
	s.SubmittedAt = time.Now()
	m.finals[s.GameID] = append(m.finals[s.GameID], &s)
	return nil
}

func (m *MemoryStore) FinalScores(_ context.Context, gameID string) ([]FinalScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FinalScore, 0, len(m.finals[gameID]))
	for _, row := range m.finals[gameID] {
		out = append(out, *row)
	}
	return out, nil
}

func (m *MemoryStore) SetFinalRanks(_ context.Context, gameID string, ranks map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.finals[gameID] {
		if rank, ok := ranks[row.UserID]; ok {
			row.FinalRank = rank
		}
	}
	return nil
}
