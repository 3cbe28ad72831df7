package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"purchaseflow/internal/core"
)

// PurchaseEventMessage is the body published for every purchase event.
// The routing key is the event type.
type PurchaseEventMessage struct {
	Type        core.EventType `json:"type"`
	PurchaseID  core.ID        `json:"purchase_id"`
	ProductID   core.ID        `json:"product_id"`
	ProductName string         `json:"product_name"`
	Price       core.Money     `json:"price"`
	Date        core.Date      `json:"date"`
	Mode        string         `json:"mode"`
	Timestamp   time.Time      `json:"timestamp"`
}

func NewPurchaseEventMessage(ev core.PurchaseEvent) *PurchaseEventMessage {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &PurchaseEventMessage{
		Type:        ev.Type,
		PurchaseID:  ev.Purchase.ID,
		ProductID:   ev.Purchase.ProductID,
		ProductName: ev.Purchase.ProductName,
		Price:       ev.Purchase.Price,
		Date:        ev.Purchase.Date,
		Mode:        ev.Mode,
		Timestamp:   ts,
	}
}

func (m *PurchaseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PurchaseEventMessageFromJSON decodes a message and rejects unknown types.
func PurchaseEventMessageFromJSON(data []byte) (*PurchaseEventMessage, error) {
	var msg PurchaseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case core.EventPurchaseCreated, core.EventPurchaseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
