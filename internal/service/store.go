package service

import (
	"context"

	"github.com/turdhunter-api/internal/domain"
)

// ScoreRepository is the storage a ScoreService needs
type ScoreRepository interface {
	// InsertScore persists a new record
	InsertScore(ctx context.Context, score domain.ScoreRecord) error
	// TopScores returns up to query.Limit records ordered by ascending time_seconds
	TopScores(ctx context.Context, query domain.TopScoresQuery) ([]domain.ScoreRecord, error)
	// PlayerScores returns up to limit records for a player, newest first
	PlayerScores(ctx context.Context, playerName string, limit int) ([]domain.ScoreRecord, error)
}

// SubscriptionRepository is the storage a SubscriptionService needs
type SubscriptionRepository interface {
	// GetSubscription returns domain.ErrSubscriptionNotFound when the player has no record
	GetSubscription(ctx context.Context, playerID string) (*domain.SubscriptionRecord, error)
	// UpsertSubscription atomically creates rec, or sets only is_subscribed
	// on the existing record for rec.PlayerID. It returns the resulting flag.
	UpsertSubscription(ctx context.Context, rec domain.SubscriptionRecord) (bool, error)
}

// Store is a storage backend serving both entities
type Store interface {
	ScoreRepository
	SubscriptionRepository
	Ping(ctx context.Context) error
	Close() error
}
