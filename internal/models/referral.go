package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralBonusPoints is credited to the referrer once per referred account.
const ReferralBonusPoints = 100

// ReferralRatePercent is the permanent base-rate uplift applied to the
// referrer when a referral is recorded (105 = x1.05, floored).
const ReferralRatePercent = 105

type Referral struct {
	ID          uuid.UUID `json:"id"`
	ReferrerID  uuid.UUID `json:"referrer_id"`
	ReferredID  uuid.UUID `json:"referred_id"`
	BonusPoints int       `json:"bonus_points"`
	CreatedAt   time.Time `json:"created_at"`
	// Summary of the referred account, joined by the repository for listings.
	Referred *Account `json:"referred,omitempty"`
}
