package orders

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/account"
	kafkax "github.com/ariefcatur/go-voice-storefront/internal/kafka"
	"github.com/google/uuid"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type OrderLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID   int64       `json:"order_id"`
	UserID    string      `json:"user_id"`
	Items     []OrderLine `json:"items"`
	Total     string      `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
}

type OrderCancelledPayload struct {
	OrderID   int64  `json:"order_id"`
	UserID    string `json:"user_id"`
	Total     string `json:"total"`
	ItemCount int    `json:"item_count"`
}

func newEnvelope(eventType, producer, traceID string, orderID int64, payload any, now time.Time) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       kafkax.MustMarshal(payload),
	}
}

func placedPayload(uid string, o account.Order) OrderPlacedPayload {
	lines := make([]OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, OrderLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Color:     it.Color,
			Quantity:  it.Quantity,
			Price:     it.Price.String(),
		})
	}
	return OrderPlacedPayload{
		OrderID:   o.ID,
		UserID:    uid,
		Items:     lines,
		Total:     o.Total.String(),
		CreatedAt: o.CreatedAt,
	}
}

func cancelledPayload(uid string, o account.Order) OrderCancelledPayload {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return OrderCancelledPayload{OrderID: o.ID, UserID: uid, Total: o.Total.String(), ItemCount: n}
}
