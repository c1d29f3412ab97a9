package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/storetest"
)

// dsnEnv points the tests at an existing database instead of a container.
const dsnEnv = "TURDHUNTER_TEST_POSTGRES_DSN"

type RepositorySuite struct {
	storetest.Suite
	dsn  string
	repo *Repository
}

func TestRepositorySuite(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		dsn = startPostgres(t)
	}
	suite.Run(t, &RepositorySuite{dsn: dsn})
}

// startPostgres runs a disposable Postgres container for the test
func startPostgres(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	const (
		dbName   = "turdhunter"
		user     = "turdhunter"
		password = "turdhunter"
	)
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername(user),
		tcpostgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
					user, password, host, port.Port(), dbName)
			}).WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "starting postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func (s *RepositorySuite) SetupSuite() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := NewRepositoryFromURL(ctx, s.dsn, nil, logger)
	s.Require().NoError(err)
	s.Require().NoError(repo.RunMigrations(ctx))
	s.repo = repo
}

func (s *RepositorySuite) TearDownSuite() {
	if s.repo != nil {
		_ = s.repo.Close()
	}
}

func (s *RepositorySuite) SetupTest() {
	s.Ctx = context.Background()
	_, err := s.repo.Pool().Exec(s.Ctx, `TRUNCATE game_scores, subscriptions`)
	s.Require().NoError(err)

	s.Store = s.repo
	s.CountSubscriptions = func(playerID string) int {
		count, err := s.repo.CountSubscriptions(s.Ctx, playerID)
		s.Require().NoError(err)
		return count
	}
}

func (s *RepositorySuite) TestMigrationsAreRepeatable() {
	s.NoError(s.repo.RunMigrations(s.Ctx))
}

func (s *RepositorySuite) TestUniquePlayerConstraint() {
	_, err := s.repo.Pool().Exec(s.Ctx,
		`INSERT INTO subscriptions (id, player_id, is_subscribed, created_at) VALUES ($1, $2, false, now())`,
		"first", "p1")
	s.Require().NoError(err)

	_, err = s.repo.Pool().Exec(s.Ctx,
		`INSERT INTO subscriptions (id, player_id, is_subscribed, created_at) VALUES ($1, $2, false, now())`,
		"second", "p1")
	s.Error(err, "player_id must be unique")
}

func (s *RepositorySuite) TestConcurrentUpsertsAgainstSamePlayer() {
	const writers = 16
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.repo.UpsertSubscription(s.Ctx, domain.SubscriptionRecord{
				ID:           fmt.Sprintf("sub-%d", i),
				PlayerID:     "racer",
				IsSubscribed: i%2 == 0,
				Timestamp:    base.Add(time.Duration(i) * time.Second),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}
	s.Equal(1, s.CountSubscriptions("racer"))
}
