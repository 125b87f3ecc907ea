package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	stripego "github.com/stripe/stripe-go/v78"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SignatureHeader carries Stripe's timestamped HMAC of the raw body.
const SignatureHeader = "Stripe-Signature"

const maxWebhookBody = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripego.Event) error
}

// WebhookGuard deduplicates deliveries by event id. Delete releases a mark so a failed
// event can be retried by Stripe.
type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripego.Event, error)
}

type receipt struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// StripeWebhook receives payment notifications. The body is read raw so the signature can be
// checked against the exact bytes Stripe signed.
func StripeWebhook(svc StripeWebhookService, verifier EventVerifier, guard WebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := verifier.VerifyEvent(payload, r.Header.Get(SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			logInfo(ctx, logg, "stripe.event.duplicate")
			responses.WriteSuccess(w, receipt{Received: true, Duplicate: true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if delErr := guard.Delete(context.WithoutCancel(ctx), event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "stripe.event.guard_release_failed", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logInfo(ctx, logg, "stripe.event.processed")
		responses.WriteSuccess(w, receipt{Received: true})
	}
}

func logInfo(ctx context.Context, logg *logger.Logger, msg string) {
	if logg != nil {
		logg.Info(ctx, msg)
	}
}
