package main

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turdhunter-api/internal/domain"
)

func TestPlayerName(t *testing.T) {
	assert.Equal(t, "Phoenix1", playerName(0))
	assert.Equal(t, "Shadow1", playerName(1))
	assert.Equal(t, "Phoenix2", playerName(len(playerPrefixes)))
}

func TestRandomRunDecodesAsSubmission(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		run := randomRun(rng, 50)
		data, err := json.Marshal(run)
		require.NoError(t, err)

		score, err := domain.DecodeScoreSubmission(data)
		require.NoError(t, err)
		assert.Equal(t, run.PlayerName, score.PlayerName)
		assert.Contains(t, difficulties, score.Difficulty)
		assert.Positive(t, score.TimeSeconds)
	}
}
