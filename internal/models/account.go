package models

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied when an account is first created.
const (
	DefaultBaseRate = 10 // points per hour
	DefaultPoints   = 0
)

// LevelThresholds maps point balance to account level: an account reaching
// LevelThresholds[i] points is at level i+2.
var LevelThresholds = []int{1000, 5000, 15000, 50000, 150000}

type Account struct {
	ID                 uuid.UUID `json:"id"`
	TelegramID         string    `json:"telegram_id"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name,omitempty"`
	Username           string    `json:"username,omitempty"`
	PhotoURL           string    `json:"photo_url,omitempty"`
	Level              int       `json:"level"`
	Points             int       `json:"points"`
	BaseRate           int       `json:"base_rate"` // points per hour before boosts
	LastSettledAt      time.Time `json:"last_settled_at"`
	ReferralCode       string    `json:"referral_code"`
	ReferredBy         *string   `json:"referred_by,omitempty"`
	CompletedTaskCount int       `json:"completed_task_count"`
	BoostPurchaseCount int       `json:"boost_purchase_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LevelForPoints returns the level an account with the given balance holds.
func LevelForPoints(points int) int {
	level := 1
	for _, threshold := range LevelThresholds {
		if points < threshold {
			break
		}
		level++
	}
	return level
}
