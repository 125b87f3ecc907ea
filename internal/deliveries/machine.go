package deliveries

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/statemachine"
)

// Event drives the delivery lifecycle table.
type Event string

const (
	EventAssign   Event = "assign"
	EventDispatch Event = "dispatch"
	EventDeliver  Event = "deliver"
	EventCancel   Event = "cancel"
	EventFail     Event = "fail"
)

type edge = statemachine.Transition[enums.DeliveryStatus, Event]

var lifecycle = statemachine.New[enums.DeliveryStatus, Event]("delivery",
	edge{From: enums.DeliveryStatusPending, Event: EventAssign, To: enums.DeliveryStatusAssigned},
	edge{From: enums.DeliveryStatusPending, Event: EventCancel, To: enums.DeliveryStatusCancelled},
	edge{From: enums.DeliveryStatusPending, Event: EventFail, To: enums.DeliveryStatusFailed},
	edge{From: enums.DeliveryStatusAssigned, Event: EventDispatch, To: enums.DeliveryStatusOutForDelivery},
	edge{From: enums.DeliveryStatusAssigned, Event: EventCancel, To: enums.DeliveryStatusCancelled},
	edge{From: enums.DeliveryStatusAssigned, Event: EventFail, To: enums.DeliveryStatusFailed},
	edge{From: enums.DeliveryStatusOutForDelivery, Event: EventDeliver, To: enums.DeliveryStatusDelivered},
	edge{From: enums.DeliveryStatusOutForDelivery, Event: EventFail, To: enums.DeliveryStatusFailed},
)
