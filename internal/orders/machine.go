package orders

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/statemachine"
)

// Event drives the order lifecycle table.
type Event string

const (
	EventProcess Event = "process"
	EventShip    Event = "ship"
	EventDeliver Event = "deliver"
	EventCancel  Event = "cancel"
)

// ParseEvent accepts the admin-facing advance events. Cancel has its own operation.
func ParseEvent(value string) (Event, bool) {
	switch Event(value) {
	case EventProcess, EventShip, EventDeliver:
		return Event(value), true
	default:
		return "", false
	}
}

var lifecycle = statemachine.New[enums.OrderStatus, Event]("order",
	statemachine.Transition[enums.OrderStatus, Event]{From: enums.OrderStatusPending, Event: EventProcess, To: enums.OrderStatusProcessing},
	statemachine.Transition[enums.OrderStatus, Event]{From: enums.OrderStatusPending, Event: EventCancel, To: enums.OrderStatusCancelled},
	statemachine.Transition[enums.OrderStatus, Event]{From: enums.OrderStatusProcessing, Event: EventShip, To: enums.OrderStatusShipped},
	statemachine.Transition[enums.OrderStatus, Event]{From: enums.OrderStatusShipped, Event: EventDeliver, To: enums.OrderStatusDelivered},
)
