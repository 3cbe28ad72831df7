package core

import "time"

type EventType string

const (
	EventPurchaseCreated EventType = "purchase.created"
	EventPurchaseDeleted EventType = "purchase.deleted"
)

// PurchaseEvent is emitted after a purchase was created or deleted.
type PurchaseEvent struct {
	Type       EventType `json:"type"`
	Purchase   Purchase  `json:"purchase"`
	Mode       string    `json:"mode"`
	OccurredAt time.Time `json:"occurred_at"`
}
