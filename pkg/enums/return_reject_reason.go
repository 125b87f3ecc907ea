package enums

import "slices"

// ReturnRejectReason is the closed set of reasons an admin may cite when rejecting a return.
type ReturnRejectReason string

const (
	ReturnRejectNotEligible          ReturnRejectReason = "not_eligible"
	ReturnRejectOutsideWindow        ReturnRejectReason = "outside_window"
	ReturnRejectInsufficientEvidence ReturnRejectReason = "insufficient_evidence"
	ReturnRejectFraudSuspected       ReturnRejectReason = "fraud_suspected"
	ReturnRejectOther                ReturnRejectReason = "other"
)

var validReturnRejectReasons = []ReturnRejectReason{
	ReturnRejectNotEligible,
	ReturnRejectOutsideWindow,
	ReturnRejectInsufficientEvidence,
	ReturnRejectFraudSuspected,
	ReturnRejectOther,
}

// String implements fmt.Stringer.
func (s ReturnRejectReason) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnRejectReason.
func (s ReturnRejectReason) IsValid() bool {
	return slices.Contains(validReturnRejectReasons, s)
}

// ParseReturnRejectReason converts raw input into a ReturnRejectReason.
func ParseReturnRejectReason(value string) (ReturnRejectReason, error) {
	return parse("return reject reason", value, validReturnRejectReasons)
}
