package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CurrentVersion is stamped on envelopes whose event does not pin one.
const CurrentVersion = 1

// ActorRef identifies who caused the event. System-driven events (webhooks) carry the customer.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

func ActorFrom(actor types.Actor) *ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and sent to brokers unchanged,
// so consumers can route on it without reading message attributes.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType,omitempty"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType,omitempty"`
	AggregateID   uuid.UUID                 `json:"aggregateId,omitempty"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// DecodeEnvelope parses the stored payload column. Rows without an event id are rejected.
func DecodeEnvelope(raw json.RawMessage) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, err
	}
	if env.EventID == "" {
		return PayloadEnvelope{}, fmt.Errorf("envelope has no event id")
	}
	return env, nil
}
