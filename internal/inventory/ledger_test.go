package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

func newTestLedger(t *testing.T) (Ledger, *gorm.DB) {
	t.Helper()
	conn := dbtest.NewSQLite(t, &models.SKU{})
	return NewLedger(conn, metrics.NewInventoryMetrics(prometheus.NewRegistry())), conn
}

func seedSKU(t *testing.T, l Ledger, stock, returned int) *models.SKU {
	t.Helper()
	sku := &models.SKU{
		ProductID:     uuid.New(),
		VariantName:   "Default",
		Price:         100000,
		Stock:         stock,
		ReturnedStock: returned,
	}
	require.NoError(t, l.Create(context.Background(), sku))
	return sku
}

func TestReserveNeverOversells(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 5, 0)

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Reserve(ctx, sku.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, callers-5, rejected)

	got, err := l.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ReservedStock)
	assert.Equal(t, 0, got.Available())
}

func TestReserveInsufficientCarriesDetails(t *testing.T) {
	l, _ := newTestLedger(t)
	sku := seedSKU(t, l, 2, 0)

	err := l.Reserve(context.Background(), sku.ID, 3)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, sku.ID.String(), details["sku_id"])
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 2, details["available"])
}

func TestReserveUnknownSKU(t *testing.T) {
	l, _ := newTestLedger(t)
	err := l.Reserve(context.Background(), uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestRejectsNonPositiveQuantities(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 2, 0)

	for name, call := range map[string]func() error{
		"reserve":  func() error { return l.Reserve(ctx, sku.ID, 0) },
		"commit":   func() error { return l.CommitSale(ctx, sku.ID, -1, 0) },
		"release":  func() error { return l.ReleaseReservation(ctx, sku.ID, 0) },
		"restock":  func() error { return l.Restock(ctx, sku.ID, 0) },
		"returned": func() error { return l.MarkReturned(ctx, sku.ID, -2) },
	} {
		if err := call(); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestCommitSaleDrawsFromReturnedStockFirst(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 10, 3)
	require.True(t, sku.IsReturned)

	require.NoError(t, l.Reserve(ctx, sku.ID, 5))
	require.NoError(t, l.CommitSale(ctx, sku.ID, 5, 3))

	got, err := l.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)
	assert.Equal(t, 0, got.ReservedStock)
	assert.Equal(t, 0, got.ReturnedStock)
	assert.False(t, got.IsReturned)
}

func TestCommitSaleKeepsReturnedFlagWhileBucketNonEmpty(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 10, 3)

	require.NoError(t, l.Reserve(ctx, sku.ID, 1))
	require.NoError(t, l.CommitSale(ctx, sku.ID, 1, 1))

	got, err := l.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
	assert.Equal(t, 2, got.ReturnedStock)
	assert.True(t, got.IsReturned)
}

func TestCommitSaleWithoutReservationConflicts(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 10, 0)

	err := l.CommitSale(ctx, sku.ID, 2, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	err = l.CommitSale(ctx, sku.ID, 2, 3)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	got, err := l.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
}

func TestReleaseReservationFloorsAtZero(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 4, 0)

	require.NoError(t, l.Reserve(ctx, sku.ID, 2))
	require.NoError(t, l.ReleaseReservation(ctx, sku.ID, 5))

	got, err := l.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedStock)
	assert.Equal(t, 4, got.Stock)
}

func TestRestockAndMarkReturned(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 1, 0)

	require.NoError(t, l.Restock(ctx, sku.ID, 4))
	require.NoError(t, l.MarkReturned(ctx, sku.ID, 2))

	got, err := l.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	assert.Equal(t, 2, got.ReturnedStock)
	assert.True(t, got.IsReturned)

	require.True(t, pkgerrors.IsCode(l.Restock(ctx, uuid.New(), 1), pkgerrors.CodeNotFound))
}

func TestWithTxRollsBackLedgerWrites(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()
	sku := seedSKU(t, l, 3, 0)

	err := conn.Transaction(func(tx *gorm.DB) error {
		txLedger := l.WithTx(tx)
		if err := txLedger.Reserve(ctx, sku.ID, 2); err != nil {
			return err
		}
		return txLedger.Reserve(ctx, sku.ID, 2)
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	got, err := l.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedStock)
}
