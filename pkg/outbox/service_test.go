package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.NewSQLite(t, &models.OutboxEvent{})
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	orderID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, TotalAmount: 90000},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())
	assert.Contains(t, string(env.Data), "\"total_amount\":90000")
	assert.Equal(t, enums.EventOrderCreated, env.EventType)
	assert.Equal(t, orderID, env.AggregateID)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	conn := dbtest.NewSQLite(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"to": "processing"},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	conn := dbtest.NewSQLite(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()})
	assert.Error(t, err)
	err = svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: "nope", AggregateID: uuid.New()})
	assert.Error(t, err)
	err = svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder})
	assert.Error(t, err)
	err = svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder})
	assert.Error(t, err)
}

func TestRepositoryPublishBookkeeping(t *testing.T) {
	conn := dbtest.NewSQLite(t, &models.OutboxEvent{})
	repo := NewRepository(conn)

	first := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), AttemptCount: 5}
	require.NoError(t, conn.Create(&first).Error)
	require.NoError(t, conn.Create(&second).Error)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)

	require.NoError(t, repo.MarkFailedTx(conn, first.ID, errors.New("sink down")))
	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", first.ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "sink down", *failed.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, first.ID))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCountPendingIgnoresPublishedAndParked(t *testing.T) {
	conn := dbtest.NewSQLite(t, &models.OutboxEvent{})
	repo := NewRepository(conn)
	now := time.Now().UTC()

	for _, row := range []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &now},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), AttemptCount: 10},
	} {
		row := row
		require.NoError(t, repo.Insert(conn, &row))
	}

	n, err := repo.CountPending(nil, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDecodeEnvelopeRequiresEventID(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"version":1,"data":{}}`))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}
