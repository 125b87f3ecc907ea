//go:build integration

package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const (
	pgUser     = "storefront"
	pgPassword = "storefront"
	pgDatabase = "storefront_test"
)

func startPostgres(t *testing.T) *db.Client {
	t.Helper()
	ctx := context.Background()

	dsn := func(host string, port nat.Port) string {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPassword, host, port.Port(), pgDatabase)
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			Tmpfs:      map[string]string{"/var/lib/postgresql/data": "rw"},
			Cmd:        []string{"postgres", "-c", "fsync=off", "-c", "max_connections=100"},
			WaitingFor: wait.ForSQL("5432/tcp", "pgx", dsn).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := db.New(ctx, config.DBConfig{DSN: dsn(host, port), Driver: config.DBDriverPostgres, MaxOpenConns: 30, MaxIdleConns: 10}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(ctx, sqlDB, "../../pkg/migrate/migrations", "up"))
	return client
}

func TestPostgresReserveUnderContention(t *testing.T) {
	client := startPostgres(t)
	ledger := NewLedger(client.DB(), nil)
	ctx := context.Background()

	sku := &models.SKU{ProductID: uuid.New(), VariantName: "Large", Price: 250000, Stock: 10, Returnable: true}
	require.NoError(t, ledger.Create(ctx, sku))

	const callers = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		rejected int
		other    []error
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Reserve(ctx, sku.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 10, reserved)
	assert.Equal(t, callers-10, rejected)

	got, err := ledger.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.ReservedStock)
	assert.Equal(t, 0, got.Available())
}

func TestPostgresCommitSaleConsumesReturnedUnitsFirst(t *testing.T) {
	client := startPostgres(t)
	ledger := NewLedger(client.DB(), nil)
	ctx := context.Background()

	sku := &models.SKU{ProductID: uuid.New(), VariantName: "Small", Price: 90000, Stock: 5, ReturnedStock: 2, Returnable: true}
	require.NoError(t, ledger.Create(ctx, sku))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		txLedger := ledger.WithTx(tx)
		if err := txLedger.Reserve(ctx, sku.ID, 3); err != nil {
			return err
		}
		return txLedger.CommitSale(ctx, sku.ID, 3, 2)
	})
	require.NoError(t, err)

	got, err := ledger.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)
	assert.Equal(t, 0, got.ReservedStock)
	assert.Equal(t, 0, got.ReturnedStock)
	assert.False(t, got.IsReturned)

	require.NoError(t, ledger.ReleaseReservation(ctx, sku.ID, 1))
	got, err = ledger.Get(ctx, sku.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedStock, "release clamps at zero")
}
