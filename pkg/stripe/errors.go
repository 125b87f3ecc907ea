package stripe

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/stripe/stripe-go/v78"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// classify maps a gateway failure onto the platform error codes.
// Transport timeouts and 5xx answers are retryable; anything the gateway explicitly refused is not.
func classify(err error, action string) error {
	if isTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, action+": gateway timed out")
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, action+": gateway unavailable")
		}
		return pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, action+": "+stripeErr.Msg).
			WithDetails(map[string]any{
				"type": string(stripeErr.Type),
				"code": string(stripeErr.Code),
			})
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, action)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case isTimeout(err):
		return "timeout"
	default:
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return "unavailable"
		}
		return "rejected"
	}
}
