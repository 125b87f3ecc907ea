package enums

import "slices"

// RefundStatus tracks a refund request against the payment gateway.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusCompleted RefundStatus = "completed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusPending,
	RefundStatusApproved,
	RefundStatusRejected,
	RefundStatusCompleted,
}

// String implements fmt.Stringer.
func (s RefundStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RefundStatus.
func (s RefundStatus) IsValid() bool {
	return slices.Contains(validRefundStatuses, s)
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	return parse("refund status", value, validRefundStatuses)
}
