package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/controllers/dto"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type reviewNotesRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type rejectReturnRequest struct {
	Reason string `json:"reason" validate:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type approvalResponse struct {
	Request     dto.ReturnRequest  `json:"request"`
	Refund      *dto.RefundRequest `json:"refund,omitempty"`
	RefundError string             `json:"refundError,omitempty"`
}

// ReturnCreate accepts multipart form fields orderId, skuId, quantity, reason and up to
// five "images" files.
func ReturnCreate(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		images, err := validators.ParseMultipartFiles(r, "images", returns.MaxEvidenceImages)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := returnInputFromForm(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Create(r.Context(), actor.UserID, input, images)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewReturnRequest(*request))
	}
}

func returnInputFromForm(r *http.Request) (returns.CreateInput, error) {
	var input returns.CreateInput
	details := map[string]string{}

	orderID, err := uuid.Parse(strings.TrimSpace(r.FormValue("orderId")))
	if err != nil {
		details["orderId"] = "must be a valid uuid"
	}
	skuID, err := uuid.Parse(strings.TrimSpace(r.FormValue("skuId")))
	if err != nil {
		details["skuId"] = "must be a valid uuid"
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(r.FormValue("quantity")))
	if err != nil || quantity < 1 {
		details["quantity"] = "must be a positive integer"
	}
	reason := validators.SanitizeString(r.FormValue("reason"), 1000)
	if reason == "" {
		details["reason"] = "is required"
	}
	if len(details) > 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid return request").WithDetails(details)
	}

	input.OrderID = orderID
	input.SKUID = skuID
	input.Quantity = quantity
	input.Reason = reason
	return input, nil
}

func ReturnDetail(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Get(r.Context(), requestID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewReturnRequest(*request))
	}
}

func ReturnList(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter returns.ListFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			if filter.Status, err = enums.ParseReturnStatus(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
		}
		if filter.UserID, err = validators.ParseQueryUUID(r, "userId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewReturnRequests(list))
	}
}

// ReturnApprove reports a refund gateway failure alongside the approved request instead of
// failing the call; the refund stays pending for a later admin retry.
func ReturnApprove(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reviewNotesRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		approval, err := svc.Approve(r.Context(), requestID, payload.Notes, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := approvalResponse{Request: dto.NewReturnRequest(*approval.Request)}
		if approval.Refund != nil {
			refund := dto.NewRefundRequest(*approval.Refund)
			resp.Refund = &refund
		}
		if approval.RefundErr != nil {
			resp.RefundError = "refund submission failed; it remains pending"
		}
		responses.WriteSuccess(w, resp)
	}
}

func ReturnReject(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload rejectReturnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseReturnRejectReason(strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reject reason"))
			return
		}

		request, err := svc.Reject(r.Context(), requestID, reason, payload.Notes, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewReturnRequest(*request))
	}
}

func ReturnComplete(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reviewNotesRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Complete(r.Context(), requestID, payload.Notes, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewReturnRequest(*request))
	}
}
