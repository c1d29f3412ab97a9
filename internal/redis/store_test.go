package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/storetest"
)

type StoreSuite struct {
	storetest.Suite
	mini  *miniredis.Miniredis
	redis *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.redis = NewStoreWithClient(client, "test", logger)
	s.Store = s.redis
	s.Ctx = context.Background()
	s.CountSubscriptions = func(playerID string) int {
		if s.mini.Exists(s.redis.subscriptionKey(playerID)) {
			return 1
		}
		return 0
	}
}

func (s *StoreSuite) TearDownTest() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StoreSuite) TestInsertScoreIndexesRecord() {
	rec := domain.ScoreRecord{
		ID:          "score-1",
		PlayerName:  "Ann",
		Difficulty:  "easy",
		TimeSeconds: 75,
		Moves:       30,
		Completed:   true,
		Timestamp:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.redis.InsertScore(s.Ctx, rec))

	s.True(s.mini.Exists("test:score:score-1"))

	member := timeMember(75, "score-1")
	members, err := s.mini.ZMembers("test:scores:by_time:easy")
	s.Require().NoError(err)
	s.Equal([]string{member}, members)

	members, err = s.mini.ZMembers("test:scores:by_time")
	s.Require().NoError(err)
	s.Equal([]string{member}, members)

	members, err = s.mini.ZMembers("test:scores:player:Ann")
	s.Require().NoError(err)
	s.Equal([]string{"score-1"}, members)
}

func (s *StoreSuite) TestTopScoresSkipsDanglingIndex() {
	s.Require().NoError(s.redis.InsertScore(s.Ctx, domain.ScoreRecord{ID: "kept", PlayerName: "Ann", TimeSeconds: 2}))
	_, err := s.mini.ZAdd("test:scores:by_time", 0, timeMember(1, "gone"))
	s.Require().NoError(err)

	top, err := s.redis.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(top, 1)
	s.Equal("kept", top[0].ID)
}

func (s *StoreSuite) TestTopScoresOrdersBeyondFloatPrecision() {
	const big = int64(1) << 53
	for i, seconds := range []int64{big + 3, big + 1, big + 2, math.MinInt64, math.MaxInt64, -1} {
		s.Require().NoError(s.redis.InsertScore(s.Ctx, domain.ScoreRecord{
			ID:          fmt.Sprintf("run-%d", i),
			PlayerName:  "Ann",
			Difficulty:  "easy",
			TimeSeconds: seconds,
		}))
	}

	top, err := s.redis.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 10, Difficulty: "easy"})
	s.Require().NoError(err)
	got := make([]int64, len(top))
	for i, rec := range top {
		got[i] = rec.TimeSeconds
	}
	s.Equal([]int64{math.MinInt64, -1, big + 1, big + 2, big + 3, math.MaxInt64}, got)
}

func TestTimeMemberRoundTrip(t *testing.T) {
	assert.Equal(t, "run:1", memberID(timeMember(-5, "run:1")))
	assert.Less(t, timeMember(-1, "a"), timeMember(0, "a"))
	assert.Less(t, timeMember(9, "a"), timeMember(10, "a"))
}

func (s *StoreSuite) TestBackendFailure() {
	s.mini.Close()

	_, err := s.redis.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 10})
	s.Error(err)
	_, err = s.redis.UpsertSubscription(s.Ctx, domain.SubscriptionRecord{ID: "x", PlayerID: "p"})
	s.Error(err)
	s.Error(s.redis.Ping(s.Ctx))
}
