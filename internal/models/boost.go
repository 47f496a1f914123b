package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseMultiplierPermille is the neutral multiplier (1.0x). Boost multipliers
// are stored in permille so 1500 means 1.5x.
const BaseMultiplierPermille = 1000

// BoostDefinition is a catalog entry. Immutable at runtime; Active only
// controls catalog visibility, not already-purchased instances.
type BoostDefinition struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	MultiplierPermille int       `json:"multiplier_permille"`
	DurationHours      int       `json:"duration_hours"`
	Price              int       `json:"price"`
	Active             bool      `json:"active"`
	IconName           string    `json:"icon_name,omitempty"`
	ColorClass         string    `json:"color_class,omitempty"`
	Popular            bool      `json:"popular,omitempty"`
}

// BoostInstance is a purchased, time-bounded application of a definition.
// Definition is always resolved by the repository before the instance reaches
// the accrual or ledger code.
type BoostInstance struct {
	ID         uuid.UUID        `json:"id"`
	AccountID  uuid.UUID        `json:"account_id"`
	BoostID    uuid.UUID        `json:"boost_id"`
	StartsAt   time.Time        `json:"starts_at"`
	EndsAt     time.Time        `json:"ends_at"`
	Active     bool             `json:"active"`
	Definition *BoostDefinition `json:"definition,omitempty"`
}

// ActiveAt reports whether the instance contributes to the multiplier at t.
// The end instant is exclusive: a boost ending at t is already expired at t.
func (b *BoostInstance) ActiveAt(t time.Time) bool {
	return b.Active && !b.StartsAt.After(t) && b.EndsAt.After(t)
}
