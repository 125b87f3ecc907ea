package enums

import "slices"

// PaymentStatus tracks whether an order has been paid.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

var validPaymentStatuses = []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed}

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) IsValid() bool { return slices.Contains(validPaymentStatuses, s) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, validPaymentStatuses)
}

// PaymentMethod identifies how an order was paid. Stripe Checkout is the only method.
type PaymentMethod string

const PaymentMethodStripe PaymentMethod = "stripe"

var validPaymentMethods = []PaymentMethod{PaymentMethodStripe}

func (m PaymentMethod) String() string { return string(m) }

func (m PaymentMethod) IsValid() bool { return slices.Contains(validPaymentMethods, m) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", value, validPaymentMethods)
}
