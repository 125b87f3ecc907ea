package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/controllers/dto"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type exchangeRequest struct {
	Points int `json:"points" validate:"required,min=1,max=100"`
}

type walletResponse struct {
	Points  int          `json:"points"`
	Coupons []dto.Coupon `json:"coupons"`
}

func CouponWallet(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wallet, err := svc.List(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := walletResponse{Points: wallet.Points, Coupons: make([]dto.Coupon, 0, len(wallet.Coupons))}
		for _, c := range wallet.Coupons {
			out.Coupons = append(out.Coupons, dto.NewCoupon(c))
		}
		responses.WriteSuccess(w, out)
	}
}

// CouponExchange converts loyalty points into a coupon worth the same percentage.
func CouponExchange(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload exchangeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Exchange(r.Context(), actor.UserID, payload.Points)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewCoupon(*coupon))
	}
}
