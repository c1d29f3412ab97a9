package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turdhunter-api/internal/config"
	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/service"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Ensure Repository implements the interface
var _ service.Store = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	return NewRepositoryFromURL(ctx, cfg.ConnectionString(), cfg, logger)
}

// NewRepositoryFromURL is NewRepository with an explicit connection string
func NewRepositoryFromURL(ctx context.Context, connString string, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	if cfg != nil {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
		poolConfig.MinConns = int32(cfg.MinConnections)
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS game_scores (
			id VARCHAR(64) PRIMARY KEY,
			player_name TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			time_seconds BIGINT NOT NULL,
			moves BIGINT NOT NULL,
			completed BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id VARCHAR(64) PRIMARY KEY,
			player_id TEXT NOT NULL UNIQUE,
			is_subscribed BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_end_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_time ON game_scores(time_seconds ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_difficulty_time ON game_scores(difficulty, time_seconds ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_player ON game_scores(player_name, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// InsertScore stores a completed run
func (r *Repository) InsertScore(ctx context.Context, score domain.ScoreRecord) error {
	query := `
		INSERT INTO game_scores (id, player_name, difficulty, time_seconds, moves, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		score.ID,
		score.PlayerName,
		score.Difficulty,
		score.TimeSeconds,
		score.Moves,
		score.Completed,
		score.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	return nil
}

// TopScores retrieves the fastest runs, optionally for one difficulty
func (r *Repository) TopScores(ctx context.Context, q domain.TopScoresQuery) ([]domain.ScoreRecord, error) {
	query := `
		SELECT id, player_name, difficulty, time_seconds, moves, completed, created_at
		FROM game_scores
		WHERE ($2 = '' OR difficulty = $2)
		ORDER BY time_seconds ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, q.Limit, q.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}
	return scanScores(rows)
}

// PlayerScores retrieves a player's runs, newest first
func (r *Repository) PlayerScores(ctx context.Context, playerName string, limit int) ([]domain.ScoreRecord, error) {
	query := `
		SELECT id, player_name, difficulty, time_seconds, moves, completed, created_at
		FROM game_scores
		WHERE player_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, playerName, limit)
	if err != nil {
		return nil, fmt.Errorf("getting player scores: %w", err)
	}
	return scanScores(rows)
}

func scanScores(rows pgx.Rows) ([]domain.ScoreRecord, error) {
	defer rows.Close()

	var scores []domain.ScoreRecord
	for rows.Next() {
		var score domain.ScoreRecord
		err := rows.Scan(
			&score.ID,
			&score.PlayerName,
			&score.Difficulty,
			&score.TimeSeconds,
			&score.Moves,
			&score.Completed,
			&score.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		score.Timestamp = score.Timestamp.UTC()
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading scores: %w", err)
	}
	return scores, nil
}

// GetSubscription retrieves a player's subscription record
func (r *Repository) GetSubscription(ctx context.Context, playerID string) (*domain.SubscriptionRecord, error) {
	query := `
		SELECT id, player_id, is_subscribed, subscription_end_date, created_at
		FROM subscriptions
		WHERE player_id = $1
	`
	var rec domain.SubscriptionRecord
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&rec.ID,
		&rec.PlayerID,
		&rec.IsSubscribed,
		&rec.SubscriptionEndDate,
		&rec.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("getting subscription: %w", err)
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

// UpsertSubscription inserts the record or flips is_subscribed on the
// existing row. The UNIQUE constraint on player_id makes this atomic.
func (r *Repository) UpsertSubscription(ctx context.Context, rec domain.SubscriptionRecord) (bool, error) {
	query := `
		INSERT INTO subscriptions (id, player_id, is_subscribed, subscription_end_date, created_at)
		VALUES ($1, $2, $3, NULL, $4)
		ON CONFLICT (player_id)
		DO UPDATE SET is_subscribed = EXCLUDED.is_subscribed
		RETURNING is_subscribed
	`
	var applied bool
	err := r.pool.QueryRow(ctx, query, rec.ID, rec.PlayerID, rec.IsSubscribed, rec.Timestamp).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("upserting subscription: %w", err)
	}
	return applied, nil
}

// CountSubscriptions returns how many rows exist for a player
func (r *Repository) CountSubscriptions(ctx context.Context, playerID string) (int, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE player_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, playerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting subscriptions: %w", err)
	}
	return count, nil
}
