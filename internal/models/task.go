package models

import (
	"time"

	"github.com/google/uuid"
)

// Task kinds.
const (
	TaskKindDaily   = "daily"
	TaskKindWeekly  = "weekly"
	TaskKindSpecial = "special"
)

// TaskDefinition is a catalog entry describing a completable task.
type TaskDefinition struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Kind           string    `json:"kind"` // daily | weekly | special
	RewardPoints   int       `json:"reward_points"`
	RequiredAmount int       `json:"required_amount"`
	Active         bool      `json:"active"`
	// External-action descriptor, opaque to the core (e.g. a channel to join).
	Action string `json:"action,omitempty"`
	Target string `json:"target,omitempty"`
}

// TaskProgress tracks one account's progress against one task. Progress is
// monotonically non-decreasing; Completed flips false->true exactly once.
type TaskProgress struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	TaskID      uuid.UUID       `json:"task_id"`
	Progress    int             `json:"progress"`
	Completed   bool            `json:"completed"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Definition  *TaskDefinition `json:"definition,omitempty"`
}
