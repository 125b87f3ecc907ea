package returns

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

var lifecycle = statemachine.New[enums.ReturnStatus, Event]("return_request",
	statemachine.Transition[enums.ReturnStatus, Event]{From: enums.ReturnStatusPending, Event: EventApprove, To: enums.ReturnStatusApproved},
	statemachine.Transition[enums.ReturnStatus, Event]{From: enums.ReturnStatusPending, Event: EventReject, To: enums.ReturnStatusRejected},
	statemachine.Transition[enums.ReturnStatus, Event]{From: enums.ReturnStatusApproved, Event: EventComplete, To: enums.ReturnStatusCompleted},
)
