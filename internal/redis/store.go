package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/turdhunter-api/internal/config"
	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/service"
)

// Subscription hash fields
const (
	fieldID           = "id"
	fieldPlayerID     = "player_id"
	fieldIsSubscribed = "is_subscribed"
	fieldTimestamp    = "timestamp"
)

// Store is a Redis-backed storage backend
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// Ensure Store implements the interface
var _ service.Store = (*Store)(nil)

// NewStore creates a new Redis store and checks the connection
func NewStore(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewStoreWithClient creates a Redis store with an existing client
func NewStoreWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks that Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// InsertScore stores the record and indexes it, all in one MULTI/EXEC
func (s *Store) InsertScore(ctx context.Context, score domain.ScoreRecord) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshaling score: %w", err)
	}

	byTime := redis.Z{Member: timeMember(score.TimeSeconds, score.ID)}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.scoreKey(score.ID), data, 0)
		pipe.ZAdd(ctx, s.byTimeKey(), byTime)
		pipe.ZAdd(ctx, s.difficultyKey(score.Difficulty), byTime)
		pipe.ZAdd(ctx, s.playerKey(score.PlayerName), redis.Z{
			Score:  float64(score.Timestamp.UnixMicro()),
			Member: score.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	return nil
}

// TopScores returns the fastest runs, optionally for one difficulty
func (s *Store) TopScores(ctx context.Context, query domain.TopScoresQuery) ([]domain.ScoreRecord, error) {
	key := s.byTimeKey()
	if query.Difficulty != "" {
		key = s.difficultyKey(query.Difficulty)
	}

	members, err := s.client.ZRange(ctx, key, 0, int64(query.Limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}
	ids := make([]string, len(members))
	for i, member := range members {
		ids[i] = memberID(member)
	}
	return s.loadScores(ctx, ids)
}

// PlayerScores returns a player's runs, newest first
func (s *Store) PlayerScores(ctx context.Context, playerName string, limit int) ([]domain.ScoreRecord, error) {
	ids, err := s.client.ZRevRange(ctx, s.playerKey(playerName), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting player scores: %w", err)
	}
	return s.loadScores(ctx, ids)
}

// loadScores fetches records for ids, preserving their order
func (s *Store) loadScores(ctx context.Context, ids []string) ([]domain.ScoreRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.scoreKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading scores: %w", err)
	}

	scores := make([]domain.ScoreRecord, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			s.logger.Warn("score indexed but missing", "score_id", ids[i])
			continue
		}
		var score domain.ScoreRecord
		if err := json.Unmarshal([]byte(raw), &score); err != nil {
			return nil, fmt.Errorf("unmarshaling score %s: %w", ids[i], err)
		}
		scores = append(scores, score)
	}
	return scores, nil
}

// GetSubscription retrieves a player's subscription record
func (s *Store) GetSubscription(ctx context.Context, playerID string) (*domain.SubscriptionRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.subscriptionKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting subscription: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrSubscriptionNotFound
	}

	subscribed, err := strconv.ParseBool(fields[fieldIsSubscribed])
	if err != nil {
		return nil, fmt.Errorf("parsing is_subscribed: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, fields[fieldTimestamp])
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}

	return &domain.SubscriptionRecord{
		ID:           fields[fieldID],
		PlayerID:     fields[fieldPlayerID],
		IsSubscribed: subscribed,
		Timestamp:    ts.UTC(),
	}, nil
}

// UpsertSubscription creates or updates the player's hash in one MULTI/EXEC.
// HSETNX leaves id and timestamp of an existing record alone.
func (s *Store) UpsertSubscription(ctx context.Context, rec domain.SubscriptionRecord) (bool, error) {
	key := s.subscriptionKey(rec.PlayerID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldID, rec.ID)
		pipe.HSetNX(ctx, key, fieldPlayerID, rec.PlayerID)
		pipe.HSetNX(ctx, key, fieldTimestamp, rec.Timestamp.UTC().Format(time.RFC3339Nano))
		pipe.HSet(ctx, key, fieldIsSubscribed, strconv.FormatBool(rec.IsSubscribed))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("upserting subscription: %w", err)
	}
	return rec.IsSubscribed, nil
}
