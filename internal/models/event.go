package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

// StatusChange is emitted after a transition commits. It feeds the
// notification queue and the audit index.
type StatusChange struct {
	EventID        uuid.UUID     `json:"event_id"`
	OrderID        uuid.UUID     `json:"order_id"`
	ItemID         uuid.UUID     `json:"item_id"`
	UserID         uuid.UUID     `json:"user_id"`
	PreviousStatus status.Status `json:"previous_status"`
	Status         status.Status `json:"status"`
	Quantity       int           `json:"quantity"`
	Split          bool          `json:"split"`
	Note           string        `json:"note,omitempty"`
	Source         Source        `json:"source"`
	Actor          string        `json:"actor,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}
