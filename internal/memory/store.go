package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/service"
)

// Store is an in-memory storage backend. Scores are kept in insertion order.
type Store struct {
	mu sync.RWMutex

	scores        []domain.ScoreRecord
	subscriptions map[string]domain.SubscriptionRecord
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		subscriptions: make(map[string]domain.SubscriptionRecord),
	}
}

// Ensure Store implements the interface
var _ service.Store = (*Store)(nil)

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// Score operations

func (s *Store) InsertScore(ctx context.Context, score domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, score)
	return nil
}

func (s *Store) TopScores(ctx context.Context, query domain.TopScoresQuery) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	matched := make([]domain.ScoreRecord, 0, len(s.scores))
	for _, score := range s.scores {
		if query.Difficulty == "" || score.Difficulty == query.Difficulty {
			matched = append(matched, score)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].TimeSeconds < matched[j].TimeSeconds
	})
	return truncate(matched, query.Limit), nil
}

func (s *Store) PlayerScores(ctx context.Context, playerName string, limit int) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	var matched []domain.ScoreRecord
	// newest insert first so equal timestamps still list the latest run first
	for i := len(s.scores) - 1; i >= 0; i-- {
		if s.scores[i].PlayerName == playerName {
			matched = append(matched, s.scores[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return truncate(matched, limit), nil
}

func truncate(scores []domain.ScoreRecord, limit int) []domain.ScoreRecord {
	if limit >= 0 && len(scores) > limit {
		return scores[:limit]
	}
	return scores
}

// Subscription operations

func (s *Store) GetSubscription(ctx context.Context, playerID string) (*domain.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.subscriptions[playerID]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &rec, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, rec domain.SubscriptionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subscriptions[rec.PlayerID]; ok {
		existing.IsSubscribed = rec.IsSubscribed
		s.subscriptions[rec.PlayerID] = existing
		return existing.IsSubscribed, nil
	}
	rec.SubscriptionEndDate = nil
	s.subscriptions[rec.PlayerID] = rec
	return rec.IsSubscribed, nil
}

// SubscriptionCount returns the number of stored subscription records
func (s *Store) SubscriptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscriptions)
}
