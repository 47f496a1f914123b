package models

import (
	"time"

	"github.com/google/uuid"
)

// Point ledger entry types. Every balance mutation writes one entry in the
// same transaction, so SUM(signed amounts) + initial always equals the
// current balance.
const (
	PointEntryMiningReward  = "mining_reward"
	PointEntryTaskReward    = "task_reward"
	PointEntryBoostPurchase = "boost_purchase"
	PointEntryReferralBonus = "referral_bonus"
)

type PointEntry struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	ReferenceID  *uuid.UUID `json:"reference_id,omitempty"` // task, boost instance, or referral id
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"` // positive credit, negative debit
	BalanceAfter *int       `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
