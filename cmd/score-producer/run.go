package main

import (
	"fmt"
	"math/rand"
)

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

var difficulties = []string{"easy", "medium", "hard"}

// Run is the message published for one completed game
type Run struct {
	PlayerName  string `json:"player_name"`
	Difficulty  string `json:"difficulty"`
	TimeSeconds int64  `json:"time_seconds"`
	Moves       int64  `json:"moves"`
	Completed   bool   `json:"completed"`
}

func playerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

// randomRun generates a plausible run; harder difficulties take longer
func randomRun(rng *rand.Rand, players int) Run {
	level := rng.Intn(len(difficulties))
	base := int64(30 * (level + 1))
	seconds := base + rng.Int63n(base*3)

	return Run{
		PlayerName:  playerName(rng.Intn(players)),
		Difficulty:  difficulties[level],
		TimeSeconds: seconds,
		Moves:       seconds/3 + rng.Int63n(20),
		// roughly one run in ten is abandoned
		Completed: rng.Intn(10) != 0,
	}
}
