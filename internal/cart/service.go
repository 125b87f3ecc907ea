package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type skuReader interface {
	Get(ctx context.Context, skuID uuid.UUID) (*models.SKU, error)
}

// AddItemInput is the payload for adding a SKU to the cart.
type AddItemInput struct {
	SKUID     uuid.UUID `json:"skuId" validate:"required"`
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// Service is the cart snapshot store. It is the only writer of cart documents.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddOrUpdate(ctx context.Context, userID uuid.UUID, input AddItemInput) (*Cart, error)
	Remove(ctx context.Context, userID, skuID, productID uuid.UUID) (*Cart, error)
	ToggleSelection(ctx context.Context, userID, skuID, productID uuid.UUID, selected bool) (*Cart, error)
	UpdateQuantity(ctx context.Context, userID, skuID, productID uuid.UUID, quantity int) (*Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo Repository
	skus skuReader
	now  func() time.Time
}

func NewService(repo Repository, skus skuReader) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository required")
	}
	if skus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sku reader required")
	}
	return &service{repo: repo, skus: skus, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	return s.repo.Load(ctx, userID)
}

// AddOrUpdate merges by (sku, product): an existing line grows by the requested
// quantity and takes fresh snapshots; a new line starts selected.
func (s *service) AddOrUpdate(ctx context.Context, userID uuid.UUID, input AddItemInput) (*Cart, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	sku, err := s.skus.Get(ctx, input.SKUID)
	if err != nil {
		return nil, err
	}
	if sku.ProductID != input.ProductID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku does not belong to product")
	}

	cart, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	quantity := input.Quantity
	idx := cart.find(input.SKUID, input.ProductID)
	if idx >= 0 {
		quantity += cart.Items[idx].Quantity
	}
	if quantity > sku.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for requested quantity").
			WithDetails(map[string]any{"sku_id": sku.ID.String(), "requested": quantity, "available": sku.Available()})
	}

	line := LineItem{
		SKUID:            sku.ID,
		ProductID:        sku.ProductID,
		SKUName:          sku.VariantName,
		Image:            sku.Image,
		Quantity:         quantity,
		Selected:         true,
		AddedAt:          now,
		PriceSnapshot:    sku.Price,
		DiscountSnapshot: sku.Discount,
		StockSnapshot:    sku.Stock,
	}
	if idx >= 0 {
		line.Selected = cart.Items[idx].Selected
		cart.Items[idx] = line
	} else {
		cart.Items = append(cart.Items, line)
	}
	return s.save(ctx, cart, now)
}

func (s *service) Remove(ctx context.Context, userID, skuID, productID uuid.UUID) (*Cart, error) {
	cart, idx, err := s.loadLine(ctx, userID, skuID, productID)
	if err != nil {
		return nil, err
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.save(ctx, cart, s.now().UTC())
}

func (s *service) ToggleSelection(ctx context.Context, userID, skuID, productID uuid.UUID, selected bool) (*Cart, error) {
	cart, idx, err := s.loadLine(ctx, userID, skuID, productID)
	if err != nil {
		return nil, err
	}
	cart.Items[idx].Selected = selected
	return s.save(ctx, cart, s.now().UTC())
}

func (s *service) UpdateQuantity(ctx context.Context, userID, skuID, productID uuid.UUID, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	cart, idx, err := s.loadLine(ctx, userID, skuID, productID)
	if err != nil {
		return nil, err
	}
	cart.Items[idx].Quantity = quantity
	return s.save(ctx, cart, s.now().UTC())
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.repo.Delete(ctx, userID)
}

func (s *service) loadLine(ctx context.Context, userID, skuID, productID uuid.UUID) (*Cart, int, error) {
	cart, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, -1, err
	}
	idx := cart.find(skuID, productID)
	if idx < 0 {
		return nil, -1, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	return cart, idx, nil
}

func (s *service) save(ctx context.Context, cart *Cart, now time.Time) (*Cart, error) {
	cart.UpdatedAt = now
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}
