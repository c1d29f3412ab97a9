package redis

import (
	"fmt"
	"strings"
)

// scoreKey returns the key holding a score record as JSON
func (s *Store) scoreKey(id string) string {
	return fmt.Sprintf("%s:score:%s", s.prefix, id)
}

// timeMember encodes a time index entry so that byte order matches the numeric
// order of time_seconds over the whole int64 range. Entries share score 0 and
// Redis orders equal scores by member, which keeps ranking exact past 2^53.
func timeMember(seconds int64, id string) string {
	return fmt.Sprintf("%016x:%s", uint64(seconds)^(1<<63), id)
}

// memberID returns the score id of a time index entry
func memberID(member string) string {
	if _, id, ok := strings.Cut(member, ":"); ok {
		return id
	}
	return member
}

// byTimeKey returns the sorted set of all score ids ranked by time_seconds
func (s *Store) byTimeKey() string {
	return fmt.Sprintf("%s:scores:by_time", s.prefix)
}

// difficultyKey returns the sorted set of one difficulty's score ids ranked by time_seconds
func (s *Store) difficultyKey(difficulty string) string {
	return fmt.Sprintf("%s:scores:by_time:%s", s.prefix, difficulty)
}

// playerKey returns the sorted set of a player's score ids ranked by creation time
func (s *Store) playerKey(playerName string) string {
	return fmt.Sprintf("%s:scores:player:%s", s.prefix, playerName)
}

// subscriptionKey returns the hash holding a player's subscription record
func (s *Store) subscriptionKey(playerID string) string {
	return fmt.Sprintf("%s:subscription:%s", s.prefix, playerID)
}
