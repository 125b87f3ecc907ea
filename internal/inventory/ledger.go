package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Ledger owns every write to a SKU's stock counters. Each mutation is a single
// conditional UPDATE so concurrent callers can never drive a counter negative.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Reserve(ctx context.Context, skuID uuid.UUID, qty int) error
	CommitSale(ctx context.Context, skuID uuid.UUID, qty, fromReturned int) error
	ReleaseReservation(ctx context.Context, skuID uuid.UUID, qty int) error
	Restock(ctx context.Context, skuID uuid.UUID, qty int) error
	MarkReturned(ctx context.Context, skuID uuid.UUID, qty int) error
	Get(ctx context.Context, skuID uuid.UUID) (*models.SKU, error)
	Create(ctx context.Context, sku *models.SKU) error
}

type ledger struct {
	db      *gorm.DB
	metrics *metrics.InventoryMetrics
}

// NewLedger binds a ledger to the shared connection. m may be nil.
func NewLedger(db *gorm.DB, m *metrics.InventoryMetrics) Ledger {
	return &ledger{db: db, metrics: m}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx, metrics: l.metrics}
}

const (
	opReserve = "reserve"
	opCommit  = "commit_sale"
	opRelease = "release"
	opRestock = "restock"
	opReturn  = "mark_returned"
)

func (l *ledger) Reserve(ctx context.Context, skuID uuid.UUID, qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	res := l.db.WithContext(ctx).Exec(`
		UPDATE skus
		SET reserved_stock = reserved_stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock - reserved_stock >= ?
	`, qty, skuID, qty)
	return l.settle(ctx, opReserve, res, skuID, func(sku *models.SKU) error {
		return insufficient(sku, qty)
	})
}

func (l *ledger) CommitSale(ctx context.Context, skuID uuid.UUID, qty, fromReturned int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if fromReturned < 0 || fromReturned > qty {
		return pkgerrors.New(pkgerrors.CodeValidation, "fromReturned must be between 0 and quantity").
			WithDetails(map[string]any{"quantity": qty, "from_returned": fromReturned})
	}
	fromStock := qty - fromReturned
	res := l.db.WithContext(ctx).Exec(`
		UPDATE skus
		SET reserved_stock = reserved_stock - ?,
			returned_stock = returned_stock - ?,
			stock = stock - ?,
			is_returned = CASE WHEN returned_stock - ? > 0 THEN TRUE ELSE FALSE END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
			AND reserved_stock >= ?
			AND returned_stock >= ?
			AND stock >= ?
	`, qty, fromReturned, fromStock, fromReturned, skuID, qty, fromReturned, fromStock)
	return l.settle(ctx, opCommit, res, skuID, func(sku *models.SKU) error {
		if sku.ReservedStock < qty {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sale exceeds reserved stock").
				WithDetails(map[string]any{"sku_id": skuID.String(), "requested": qty, "reserved": sku.ReservedStock})
		}
		return insufficient(sku, qty)
	})
}

func (l *ledger) ReleaseReservation(ctx context.Context, skuID uuid.UUID, qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	res := l.db.WithContext(ctx).Exec(`
		UPDATE skus
		SET reserved_stock = CASE WHEN reserved_stock > ? THEN reserved_stock - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, skuID)
	return l.settle(ctx, opRelease, res, skuID, nil)
}

func (l *ledger) Restock(ctx context.Context, skuID uuid.UUID, qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	res := l.db.WithContext(ctx).Exec(`
		UPDATE skus
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, skuID)
	return l.settle(ctx, opRestock, res, skuID, nil)
}

func (l *ledger) MarkReturned(ctx context.Context, skuID uuid.UUID, qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	res := l.db.WithContext(ctx).Exec(`
		UPDATE skus
		SET returned_stock = returned_stock + ?,
			is_returned = TRUE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, skuID)
	return l.settle(ctx, opReturn, res, skuID, nil)
}

func (l *ledger) Get(ctx context.Context, skuID uuid.UUID) (*models.SKU, error) {
	var sku models.SKU
	if err := l.db.WithContext(ctx).Where("id = ?", skuID).First(&sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, skuNotFound(skuID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sku")
	}
	return &sku, nil
}

func (l *ledger) Create(ctx context.Context, sku *models.SKU) error {
	if sku == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}
	if sku.Stock < 0 || sku.ReservedStock < 0 || sku.ReturnedStock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock counters cannot be negative")
	}
	if sku.Discount < 0 || sku.Discount > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}
	sku.IsReturned = sku.ReturnedStock > 0
	if err := l.db.WithContext(ctx).Create(sku).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sku")
	}
	return nil
}

// settle turns the result of a guarded UPDATE into a typed error. When no row
// matched, the SKU is re-read to tell a missing SKU apart from a failed guard.
func (l *ledger) settle(ctx context.Context, op string, res *gorm.DB, skuID uuid.UUID, guardFailed func(*models.SKU) error) error {
	if res.Error != nil {
		l.metrics.Observe(op, metrics.ResultError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, fmt.Sprintf("inventory %s", op))
	}
	if res.RowsAffected > 0 {
		l.metrics.Observe(op, metrics.ResultOK)
		return nil
	}

	sku, err := l.Get(ctx, skuID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			l.metrics.Observe(op, metrics.ResultNotFound)
		} else {
			l.metrics.Observe(op, metrics.ResultError)
		}
		return err
	}
	l.metrics.Observe(op, metrics.ResultInsufficient)
	if guardFailed == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("inventory %s matched no rows", op))
	}
	return guardFailed(sku)
}

func requirePositive(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"quantity": qty})
	}
	return nil
}

func skuNotFound(skuID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "sku not found").
		WithDetails(map[string]any{"sku_id": skuID.String()})
}

func insufficient(sku *models.SKU, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for sku %s", sku.ID)).
		WithDetails(map[string]any{
			"sku_id":    sku.ID.String(),
			"requested": requested,
			"available": sku.Available(),
		})
}
