package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/turdhunter-api/internal/clock"
	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/metrics"
)

// SubscriptionService tracks the per-player subscription flag
type SubscriptionService struct {
	repo    SubscriptionRepository
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	repo SubscriptionRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		repo:    repo,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// GetStatus returns the player's record, or nil if the player has never
// set a status. A nil record means not subscribed; it is not an error.
func (s *SubscriptionService) GetStatus(ctx context.Context, playerID string) (*domain.SubscriptionRecord, error) {
	if playerID == "" {
		return nil, domain.NewValidationError("player_id", "field required")
	}

	start := time.Now()
	rec, err := s.repo.GetSubscription(ctx, playerID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		s.metrics.ObserveStore("get_subscription", start, nil)
		return nil, nil
	}
	s.metrics.ObserveStore("get_subscription", start, err)
	if err != nil {
		return nil, fmt.Errorf("getting subscription: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return rec, nil
}

// SetStatus creates the player's record on first use, otherwise only flips
// is_subscribed. The id and timestamp of an existing record never change.
func (s *SubscriptionService) SetStatus(ctx context.Context, playerID string, isSubscribed bool) (*domain.SubscriptionUpdate, error) {
	if playerID == "" {
		return nil, domain.NewValidationError("player_id", "field required")
	}

	candidate := domain.SubscriptionRecord{
		ID:           uuid.NewString(),
		PlayerID:     playerID,
		IsSubscribed: isSubscribed,
		Timestamp:    s.clock.Now().UTC().Truncate(time.Microsecond),
	}

	start := time.Now()
	applied, err := s.repo.UpsertSubscription(ctx, candidate)
	s.metrics.ObserveStore("upsert_subscription", start, err)
	if err != nil {
		return nil, fmt.Errorf("upserting subscription: %w: %w", domain.ErrStorageUnavailable, err)
	}

	s.logger.Debug("subscription updated", "player_id", playerID, "is_subscribed", applied)
	return &domain.SubscriptionUpdate{Status: "success", IsSubscribed: applied}, nil
}
