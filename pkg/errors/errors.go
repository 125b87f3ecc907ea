package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, machine readable identifier sent to clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeEmptyCart              Code = "EMPTY_CART"
	CodeAddressNotFound        Code = "ADDRESS_NOT_FOUND"
	CodeInvalidCoupon          Code = "INVALID_COUPON"
	CodeInvalidSignature       Code = "INVALID_SIGNATURE"
	CodeMalformedMetadata      Code = "MALFORMED_METADATA"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeInvalidPersonnel       Code = "INVALID_PERSONNEL"
	CodeProofRequired          Code = "PROOF_REQUIRED"
	CodeOrderNotDelivered      Code = "ORDER_NOT_DELIVERED"
	CodeDuplicateReturnRequest Code = "DUPLICATE_RETURN_REQUEST"
	CodeRefundGateway          Code = "REFUND_GATEWAY_ERROR"
	CodeRefundNotApproved      Code = "REFUND_NOT_APPROVED"
	CodeGatewayTimeout         Code = "GATEWAY_TIMEOUT"
	CodeGatewayRejected        Code = "GATEWAY_REJECTED"
)

// Metadata is how a Code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retry   = true
	details = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", details},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:     {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", details},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", details},
	CodeRateLimit:     {http.StatusTooManyRequests, false, "rate limit exceeded", false},
	CodeInternal:      {http.StatusInternalServerError, retry, "internal server error", false},
	CodeDependency:    {http.StatusServiceUnavailable, retry, "dependency unavailable", details},

	// inventory and checkout
	CodeInsufficientStock: {http.StatusConflict, false, "insufficient stock", details},
	CodeEmptyCart:         {http.StatusBadRequest, false, "cart is empty", false},
	CodeAddressNotFound:   {http.StatusNotFound, false, "address not found", false},
	CodeInvalidCoupon:     {http.StatusBadRequest, false, "coupon is invalid", false},

	// payment notifications
	CodeInvalidSignature:  {http.StatusBadRequest, false, "invalid signature", false},
	CodeMalformedMetadata: {http.StatusBadRequest, false, "malformed event metadata", details},

	// lifecycles
	CodeInvalidTransition:      {http.StatusUnprocessableEntity, false, "invalid status transition", details},
	CodeInvalidPersonnel:       {http.StatusForbidden, false, "invalid delivery personnel", false},
	CodeProofRequired:          {http.StatusUnprocessableEntity, false, "proof of delivery required", false},
	CodeOrderNotDelivered:      {http.StatusUnprocessableEntity, false, "order has not been delivered", false},
	CodeDuplicateReturnRequest: {http.StatusConflict, false, "return request already exists", false},
	CodeRefundNotApproved:      {http.StatusUnprocessableEntity, false, "refund has not been approved", false},

	// gateway
	CodeRefundGateway:   {http.StatusBadGateway, retry, "refund could not be processed", details},
	CodeGatewayTimeout:  {http.StatusGatewayTimeout, retry, "payment gateway timed out", false},
	CodeGatewayRejected: {http.StatusBadGateway, false, "payment gateway rejected the request", false},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded application error. The message is for logs; clients see the public
// message of the code unless DetailsAllowed.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err as the cause; a nil err yields New(code, message).
func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether any typed error in the chain carries code.
func IsCode(err error, code Code) bool {
	if code == "" {
		return false
	}
	for err != nil {
		var typed *Error
		if !stdErrors.As(err, &typed) {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

// As returns the outermost *Error in the chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
