package refunds

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/statemachine"
)

type Event string

const (
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventComplete Event = "complete"
)

var lifecycle = statemachine.New[enums.RefundStatus, Event]("refund",
	statemachine.Transition[enums.RefundStatus, Event]{From: enums.RefundStatusPending, Event: EventApprove, To: enums.RefundStatusApproved},
	statemachine.Transition[enums.RefundStatus, Event]{From: enums.RefundStatusPending, Event: EventReject, To: enums.RefundStatusRejected},
	statemachine.Transition[enums.RefundStatus, Event]{From: enums.RefundStatusApproved, Event: EventComplete, To: enums.RefundStatusCompleted},
)
