package domain

import "time"

// SubscriptionRecord holds a player's subscription flag. There is at most
// one record per PlayerID.
type SubscriptionRecord struct {
	ID                  string     `json:"id"`
	PlayerID            string     `json:"player_id"`
	IsSubscribed        bool       `json:"is_subscribed"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date"`
	Timestamp           time.Time  `json:"timestamp"`
}

// SubscriptionStatus is returned for players that have no record
type SubscriptionStatus struct {
	IsSubscribed bool `json:"is_subscribed"`
}

// SubscriptionUpdate confirms the flag value after a set-status call
type SubscriptionUpdate struct {
	Status       string `json:"status"`
	IsSubscribed bool   `json:"is_subscribed"`
}
