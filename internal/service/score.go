package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/turdhunter-api/internal/clock"
	"github.com/turdhunter-api/internal/config"
	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/metrics"
)

// ScoreService records completed runs and answers leaderboard queries
type ScoreService struct {
	repo    ScoreRepository
	config  *config.LeaderboardConfig
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewScoreService creates a new score service
func NewScoreService(
	repo ScoreRepository,
	cfg *config.LeaderboardConfig,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ScoreService {
	return &ScoreService{
		repo:    repo,
		config:  cfg,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// CreateScore stores a new run and returns the record exactly as persisted
func (s *ScoreService) CreateScore(ctx context.Context, score domain.NewScore) (*domain.ScoreRecord, error) {
	if score.PlayerName == "" {
		return nil, domain.NewValidationError("player_name", "field required")
	}

	record := domain.ScoreRecord{
		ID:          uuid.NewString(),
		PlayerName:  score.PlayerName,
		Difficulty:  score.Difficulty,
		TimeSeconds: score.TimeSeconds,
		Moves:       score.Moves,
		Completed:   score.Completed,
		// Postgres keeps microseconds; truncating here keeps the echo equal to what is read back
		Timestamp: s.clock.Now().UTC().Truncate(time.Microsecond),
	}

	start := time.Now()
	err := s.repo.InsertScore(ctx, record)
	s.metrics.ObserveStore("insert_score", start, err)
	if err != nil {
		return nil, fmt.Errorf("inserting score: %w: %w", domain.ErrStorageUnavailable, err)
	}

	s.logger.Debug("score recorded",
		"score_id", record.ID,
		"player_name", record.PlayerName,
		"difficulty", record.Difficulty,
		"time_seconds", record.TimeSeconds,
	)
	return &record, nil
}

// ListTop returns the fastest runs. A zero limit means the configured default.
func (s *ScoreService) ListTop(ctx context.Context, query domain.TopScoresQuery) ([]domain.ScoreRecord, error) {
	if query.Limit < 0 {
		return nil, domain.NewValidationError("limit", "must be a positive integer")
	}
	if query.Limit == 0 {
		query.Limit = s.config.DefaultLimit
	}

	start := time.Now()
	scores, err := s.repo.TopScores(ctx, query)
	s.metrics.ObserveStore("top_scores", start, err)
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nonNil(scores), nil
}

// ListByPlayer returns a player's most recent runs, newest first
func (s *ScoreService) ListByPlayer(ctx context.Context, playerName string) ([]domain.ScoreRecord, error) {
	if playerName == "" {
		return nil, domain.NewValidationError("player_name", "field required")
	}

	start := time.Now()
	scores, err := s.repo.PlayerScores(ctx, playerName, domain.PlayerHistoryCap)
	s.metrics.ObserveStore("player_scores", start, err)
	if err != nil {
		return nil, fmt.Errorf("getting player scores: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nonNil(scores), nil
}

// nonNil makes empty results encode as [] rather than null
func nonNil(scores []domain.ScoreRecord) []domain.ScoreRecord {
	if scores == nil {
		return []domain.ScoreRecord{}
	}
	return scores
}
