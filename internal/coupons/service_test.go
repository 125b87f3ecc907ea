package coupons

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fixture struct {
	conn  *gorm.DB
	svc   *service
	users *users.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t, &models.User{}, &models.Coupon{})
	userRepo := users.NewRepository(conn)
	svc, err := NewService(NewRepository(conn), userRepo, db.NewFromConn(conn), nil)
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc.(*service), users: userRepo}
}

func (f fixture) seedUser(t *testing.T, points int) uuid.UUID {
	t.Helper()
	user := &models.User{Email: uuid.NewString() + "@test", FullName: "Buyer", Points: points}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user.ID
}

func TestExchangeMintsCouponAndDeductsPoints(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t, 50)

	coupon, err := f.svc.Exchange(context.Background(), userID, 20)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^CP[A-Z0-9]{6}$`), coupon.Code)
	assert.Equal(t, 20, coupon.ValuePercent)
	assert.False(t, coupon.IsUsed)

	user, err := f.users.FindByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 30, user.Points)
}

func TestExchangeBounds(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t, 500)

	for _, points := range []int{0, -1, 101} {
		_, err := f.svc.Exchange(context.Background(), userID, points)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "points=%d", points)
	}
}

func TestExchangeInsufficientPointsLeavesNoCoupon(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t, 5)

	_, err := f.svc.Exchange(context.Background(), userID, 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, f.conn.Model(&models.Coupon{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExchangeRetriesOnCodeCollision(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t, 100)

	codes := []string{"CPAAAAAA", "CPAAAAAA", "CPBBBBBB"}
	f.svc.code = func() (string, error) {
		next := codes[0]
		codes = codes[1:]
		return next, nil
	}

	first, err := f.svc.Exchange(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.Equal(t, "CPAAAAAA", first.Code)

	second, err := f.svc.Exchange(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.Equal(t, "CPBBBBBB", second.Code)

	user, err := f.users.FindByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 80, user.Points, "the collided attempt must not debit points")
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, 100)
	other := f.seedUser(t, 0)

	coupon, err := f.svc.Exchange(ctx, owner, 10)
	require.NoError(t, err)

	got, err := f.svc.Validate(ctx, owner, " "+coupon.Code+" ")
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, got.ID)

	_, err = f.svc.Validate(ctx, owner, "CPNOPE00")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))

	_, err = f.svc.Validate(ctx, other, coupon.Code)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.conn.Model(&models.Coupon{}).Where("id = ?", coupon.ID).Update("expires_at", past).Error)
	_, err = f.svc.Validate(ctx, owner, coupon.Code)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))
}

func TestRedeemOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, 100)
	coupon, err := f.svc.Exchange(ctx, owner, 10)
	require.NoError(t, err)

	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		return f.svc.Redeem(ctx, tx, coupon.ID)
	}))

	err = f.conn.Transaction(func(tx *gorm.DB) error {
		return f.svc.Redeem(ctx, tx, coupon.ID)
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))

	_, err = f.svc.Validate(ctx, owner, coupon.Code)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))
}

func TestRedeemCodeRollsBackWithTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, 100)
	coupon, err := f.svc.Exchange(ctx, owner, 15)
	require.NoError(t, err)

	err = f.conn.Transaction(func(tx *gorm.DB) error {
		if _, err := f.svc.RedeemCode(ctx, tx, uuid.New(), coupon.Code); err != nil {
			return err
		}
		return nil
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))

	err = f.conn.Transaction(func(tx *gorm.DB) error {
		redeemed, err := f.svc.RedeemCode(ctx, tx, owner, coupon.Code)
		require.NoError(t, err)
		assert.Equal(t, 15, redeemed.ValuePercent)
		return pkgerrors.New(pkgerrors.CodeInternal, "abort")
	})
	require.Error(t, err)

	still, err := f.svc.Validate(ctx, owner, coupon.Code)
	require.NoError(t, err)
	assert.False(t, still.IsUsed)
}

func TestRedeemCodeAcceptsCouponExpiredAfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, 100)
	coupon, err := f.svc.Exchange(ctx, owner, 10)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.conn.Model(&models.Coupon{}).Where("id = ?", coupon.ID).Update("expires_at", past).Error)

	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.RedeemCode(ctx, tx, owner, coupon.Code)
		return err
	}))

	err = f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.RedeemCode(ctx, tx, owner, coupon.Code)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon), "second redemption must fail")
}

func TestAwardPointsAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.seedUser(t, 0)

	var awarded int
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		awarded, err = f.svc.AwardPoints(ctx, tx, userID, 1_250_000)
		return err
	}))
	assert.Equal(t, 12, awarded)

	_, err := f.svc.Exchange(ctx, userID, 2)
	require.NoError(t, err)

	wallet, err := f.svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 10, wallet.Points)
	assert.Len(t, wallet.Coupons, 1)
}

func TestPointsFor(t *testing.T) {
	assert.Equal(t, 0, PointsFor(0))
	assert.Equal(t, 0, PointsFor(99_999))
	assert.Equal(t, 1, PointsFor(100_000))
	assert.Equal(t, 3, PointsFor(399_999))
}

func TestAwardPointsSkipsUserWithoutAccountRow(t *testing.T) {
	f := newFixture(t)
	var awarded int
	err := f.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		awarded, err = f.svc.AwardPoints(context.Background(), tx, uuid.New(), 500_000)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, awarded)
}
