package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/controllers/dto"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type createSKURequest struct {
	ProductID   uuid.UUID `json:"productId" validate:"required"`
	VariantName string    `json:"variantName" validate:"required,max=120"`
	Image       string    `json:"image" validate:"omitempty,url"`
	Price       int64     `json:"price" validate:"min=0"`
	Discount    int       `json:"discount" validate:"min=0,max=100"`
	Stock       int       `json:"stock" validate:"min=0"`
	Returnable  bool      `json:"returnable"`
}

type stockQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func InventoryGet(ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}
		skuID, err := validators.ParseUUIDParam(r, "skuId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sku, err := ledger.Get(r.Context(), skuID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewSKUStock(*sku))
	}
}

func InventoryCreate(ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}
		var payload createSKURequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sku := &models.SKU{
			ProductID:   payload.ProductID,
			VariantName: validators.SanitizeString(payload.VariantName, 120),
			Image:       payload.Image,
			Price:       payload.Price,
			Discount:    payload.Discount,
			Stock:       payload.Stock,
			Returnable:  payload.Returnable,
		}
		if err := ledger.Create(r.Context(), sku); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.NewSKUStock(*sku))
	}
}

// InventoryRestock adds fresh units to a SKU.
func InventoryRestock(ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return stockAdjustment(ledger, logg, "inventory.restocked", func(ctx context.Context, skuID uuid.UUID, qty int) error {
		return ledger.Restock(ctx, skuID, qty)
	})
}

// InventoryRelease returns reserved units to the available pool, e.g. for an abandoned
// checkout whose payment never arrived.
func InventoryRelease(ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return stockAdjustment(ledger, logg, "inventory.reservation_released", func(ctx context.Context, skuID uuid.UUID, qty int) error {
		return ledger.ReleaseReservation(ctx, skuID, qty)
	})
}

func stockAdjustment(ledger inventory.Ledger, logg *logger.Logger, event string, adjust func(ctx context.Context, skuID uuid.UUID, qty int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}
		skuID, err := validators.ParseUUIDParam(r, "skuId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload stockQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := adjust(r.Context(), skuID, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sku, err := ledger.Get(r.Context(), skuID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"sku_id": skuID.String(), "quantity": payload.Quantity})
			logg.Info(ctx, event)
		}
		responses.WriteSuccess(w, dto.NewSKUStock(*sku))
	}
}
