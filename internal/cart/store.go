package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

// Repository loads and saves cart documents in Redis.
type Repository interface {
	Load(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type redisRepository struct {
	kv  kvStore
	ttl time.Duration
}

// NewRepository returns a Redis-backed cart repository. Every save refreshes the TTL.
func NewRepository(kv kvStore, ttl time.Duration) (Repository, error) {
	if kv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart store requires redis")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisRepository{kv: kv, ttl: ttl}, nil
}

func (r *redisRepository) Load(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	raw, err := r.kv.Get(ctx, r.kv.CartKey(userID.String()))
	if err != nil {
		if redis.IsNil(err) {
			return &Cart{UserID: userID, Items: []LineItem{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	cart.UserID = userID
	if cart.Items == nil {
		cart.Items = []LineItem{}
	}
	return &cart, nil
}

func (r *redisRepository) Save(ctx context.Context, cart *Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := r.kv.Set(ctx, r.kv.CartKey(cart.UserID.String()), string(payload), r.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := r.kv.Del(ctx, r.kv.CartKey(userID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
