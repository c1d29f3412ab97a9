// Package storetest holds the behaviour every storage backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/service"
)

// Suite runs backend-independent checks against a service.Store.
// Embed it in a backend's own suite and set the hooks in SetupTest.
type Suite struct {
	suite.Suite

	Store service.Store
	Ctx   context.Context

	// CountSubscriptions reports how many records the backend holds for a player
	CountSubscriptions func(playerID string) int
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func (s *Suite) score(player, difficulty string, seconds int64, at time.Time) domain.ScoreRecord {
	return domain.ScoreRecord{
		ID:          uuid.NewString(),
		PlayerName:  player,
		Difficulty:  difficulty,
		TimeSeconds: seconds,
		Moves:       seconds / 2,
		Completed:   true,
		Timestamp:   at,
	}
}

func (s *Suite) insert(records ...domain.ScoreRecord) {
	for _, rec := range records {
		s.Require().NoError(s.Store.InsertScore(s.Ctx, rec))
	}
}

func (s *Suite) times(records []domain.ScoreRecord) []int64 {
	out := make([]int64, len(records))
	for i, rec := range records {
		out[i] = rec.TimeSeconds
	}
	return out
}

func (s *Suite) TestTopScoresOrderAndLimit() {
	s.insert(
		s.score("Ann", "easy", 120, baseTime),
		s.score("Ann", "easy", 90, baseTime.Add(time.Second)),
		s.score("Ann", "hard", 60, baseTime.Add(2*time.Second)),
	)

	top, err := s.Store.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 2})
	s.Require().NoError(err)
	s.Equal([]int64{60, 90}, s.times(top))

	easy, err := s.Store.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 2, Difficulty: "easy"})
	s.Require().NoError(err)
	s.Equal([]int64{90, 120}, s.times(easy))
	for _, rec := range easy {
		s.Equal("easy", rec.Difficulty)
	}
}

func (s *Suite) TestTopScoresReturnsRecordsIntact() {
	want := s.score("Bo", "medium", 42, baseTime)
	want.Completed = false
	s.insert(want)

	top, err := s.Store.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(top, 1)
	s.Equal(want.ID, top[0].ID)
	s.Equal(want.PlayerName, top[0].PlayerName)
	s.Equal(want.Difficulty, top[0].Difficulty)
	s.Equal(want.TimeSeconds, top[0].TimeSeconds)
	s.Equal(want.Moves, top[0].Moves)
	s.Equal(want.Completed, top[0].Completed)
	s.True(want.Timestamp.Equal(top[0].Timestamp))
}

func (s *Suite) TestTopScoresUnknownDifficulty() {
	s.insert(s.score("Ann", "easy", 10, baseTime))

	top, err := s.Store.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 10, Difficulty: "nightmare"})
	s.Require().NoError(err)
	s.Empty(top)
}

func (s *Suite) TestTopScoresAcceptsNegativeTimes() {
	s.insert(
		s.score("Ann", "easy", 5, baseTime),
		s.score("Cy", "easy", -5, baseTime.Add(time.Second)),
	)

	top, err := s.Store.TopScores(s.Ctx, domain.TopScoresQuery{Limit: 10})
	s.Require().NoError(err)
	s.Equal([]int64{-5, 5}, s.times(top))
}

func (s *Suite) TestPlayerScoresNewestFirstAndCapped() {
	for i := 0; i < 150; i++ {
		s.insert(s.score("P", "easy", int64(i), baseTime.Add(time.Duration(i)*time.Second)))
	}
	s.insert(s.score("p", "easy", 1, baseTime.Add(time.Hour)))

	history, err := s.Store.PlayerScores(s.Ctx, "P", domain.PlayerHistoryCap)
	s.Require().NoError(err)
	s.Require().Len(history, domain.PlayerHistoryCap)

	s.Equal(int64(149), history[0].TimeSeconds)
	for i := 1; i < len(history); i++ {
		s.True(history[i-1].Timestamp.After(history[i].Timestamp), "history must be newest first")
		s.Equal("P", history[i].PlayerName)
	}
}

func (s *Suite) TestPlayerScoresUnknownPlayer() {
	history, err := s.Store.PlayerScores(s.Ctx, "nobody", domain.PlayerHistoryCap)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *Suite) TestGetSubscriptionNotFound() {
	_, err := s.Store.GetSubscription(s.Ctx, "ghost")
	s.ErrorIs(err, domain.ErrSubscriptionNotFound)
	s.Equal(0, s.CountSubscriptions("ghost"))
}

func (s *Suite) subscription(playerID string, subscribed bool) domain.SubscriptionRecord {
	return domain.SubscriptionRecord{
		ID:           uuid.NewString(),
		PlayerID:     playerID,
		IsSubscribed: subscribed,
		Timestamp:    baseTime,
	}
}

func (s *Suite) TestUpsertCreatesThenUpdatesInPlace() {
	first := s.subscription("player-1", true)
	applied, err := s.Store.UpsertSubscription(s.Ctx, first)
	s.Require().NoError(err)
	s.True(applied)

	second := s.subscription("player-1", false)
	second.Timestamp = baseTime.Add(time.Hour)
	applied, err = s.Store.UpsertSubscription(s.Ctx, second)
	s.Require().NoError(err)
	s.False(applied)

	rec, err := s.Store.GetSubscription(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(first.ID, rec.ID)
	s.Equal("player-1", rec.PlayerID)
	s.False(rec.IsSubscribed)
	s.Nil(rec.SubscriptionEndDate)
	s.True(baseTime.Equal(rec.Timestamp), "timestamp must not be refreshed on update")
	s.Equal(1, s.CountSubscriptions("player-1"))
}

func (s *Suite) TestUpsertIsIdempotent() {
	for i := 0; i < 5; i++ {
		_, err := s.Store.UpsertSubscription(s.Ctx, s.subscription("player-2", true))
		s.Require().NoError(err)
	}

	rec, err := s.Store.GetSubscription(s.Ctx, "player-2")
	s.Require().NoError(err)
	s.True(rec.IsSubscribed)
	s.Equal(1, s.CountSubscriptions("player-2"))
}

func (s *Suite) TestConcurrentUpsertCreatesOneRecord() {
	for round := 0; round < 10; round++ {
		playerID := fmt.Sprintf("racer-%d", round)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, flag := range []bool{true, false} {
			wg.Add(1)
			go func(flag bool) {
				defer wg.Done()
				_, err := s.Store.UpsertSubscription(s.Ctx, s.subscription(playerID, flag))
				errs <- err
			}(flag)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			s.Require().NoError(err)
		}

		s.Equal(1, s.CountSubscriptions(playerID))
		_, err := s.Store.GetSubscription(s.Ctx, playerID)
		s.Require().NoError(err)
	}
}

func (s *Suite) TestPing() {
	s.NoError(s.Store.Ping(s.Ctx))
}
