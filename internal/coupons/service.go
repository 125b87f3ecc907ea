package coupons

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	MinExchangePoints = 1
	MaxExchangePoints = 100

	codePrefix   = "CP"
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeTries = 5

	// one point per 100,000 currency units spent
	pointsDivisor = 100000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Wallet is a user's loyalty balance and minted coupons.
type Wallet struct {
	Points  int             `json:"points"`
	Coupons []models.Coupon `json:"coupons"`
}

// Service is the coupon and loyalty points ledger.
type Service interface {
	Exchange(ctx context.Context, userID uuid.UUID, points int) (*models.Coupon, error)
	Validate(ctx context.Context, userID uuid.UUID, code string) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
	RedeemCode(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string) (*models.Coupon, error)
	AwardPoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID, orderAmount int64) (int, error)
	List(ctx context.Context, userID uuid.UUID) (*Wallet, error)
}

type service struct {
	repo  *Repository
	users *users.Repository
	tx    txRunner
	logg  *logger.Logger
	now   func() time.Time
	code  func() (string, error)
}

func NewService(repo *Repository, userRepo *users.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:  repo,
		users: userRepo,
		tx:    tx,
		logg:  logg,
		now:   time.Now,
		code:  generateCode,
	}, nil
}

// Exchange converts points into a coupon worth the same percentage. The debit and the insert commit together.
func (s *service) Exchange(ctx context.Context, userID uuid.UUID, points int) (*models.Coupon, error) {
	if points < MinExchangePoints || points > MaxExchangePoints {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("points must be between %d and %d", MinExchangePoints, MaxExchangePoints))
	}

	var coupon *models.Coupon
	for attempt := 1; attempt <= maxCodeTries; attempt++ {
		code, err := s.code()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate coupon code")
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.users.WithTx(tx).DeductPoints(ctx, userID, points); err != nil {
				return err
			}
			coupon = &models.Coupon{
				UserID:       userID,
				Code:         code,
				ValuePercent: points,
				Description:  fmt.Sprintf("%d%% off, exchanged from %d points", points, points),
			}
			return s.repo.WithTx(tx).Create(ctx, coupon)
		})
		if err == nil {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"user_id":   userID.String(),
					"coupon_id": coupon.ID.String(),
					"points":    points,
				})
				s.logg.Info(logCtx, "coupon.exchanged")
			}
			return coupon, nil
		}
		if !db.IsUniqueViolation(err, "") {
			if pkgerrors.As(err) != nil {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "exchange points")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique coupon code")
}

func (s *service) Validate(ctx context.Context, userID uuid.UUID, code string) (*models.Coupon, error) {
	return s.validate(ctx, s.repo, userID, code)
}

func (s *service) validate(ctx context.Context, repo *Repository, userID uuid.UUID, code string) (*models.Coupon, error) {
	coupon, err := s.findOwned(ctx, repo, userID, code)
	if err != nil {
		return nil, err
	}
	switch {
	case coupon.IsUsed:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon already used")
	case coupon.Expired(s.now()):
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon expired")
	}
	return coupon, nil
}

func (s *service) findOwned(ctx context.Context, repo *Repository, userID uuid.UUID, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon code is required")
	}
	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch {
	case coupon == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon not found")
	case coupon.UserID != userID:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon belongs to another user")
	}
	return coupon, nil
}

// Redeem must run inside the order-creating transaction so a rollback restores the coupon.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	ok, err := s.repo.WithTx(tx).MarkUsed(ctx, couponID, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon already used").
			WithDetails(map[string]any{"coupon_id": couponID.String()})
	}
	return nil
}

// RedeemCode marks a paid session's coupon used using only tx. Expiry was
// enforced when the session was opened, so only ownership and the used flag
// are checked here.
func (s *service) RedeemCode(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string) (*models.Coupon, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	coupon, err := s.findOwned(ctx, s.repo.WithTx(tx), userID, code)
	if err != nil {
		return nil, err
	}
	if err := s.Redeem(ctx, tx, coupon.ID); err != nil {
		return nil, err
	}
	return coupon, nil
}

// AwardPoints credits the buyer inside tx. A buyer without a local account
// row earns nothing; the order still commits.
func (s *service) AwardPoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID, orderAmount int64) (int, error) {
	points := PointsFor(orderAmount)
	if points == 0 {
		return 0, nil
	}
	err := s.users.WithTx(tx).AddPoints(ctx, userID, points)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"user_id": userID.String(),
				"points":  points,
			})
			s.logg.Warn(logCtx, "coupon.points_skipped_unknown_user")
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return points, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Wallet{Points: user.Points, Coupons: rows}, nil
}

// PointsFor returns the loyalty points earned by an order total.
func PointsFor(orderAmount int64) int {
	if orderAmount <= 0 {
		return 0
	}
	return int(orderAmount / pointsDivisor)
}

func generateCode() (string, error) {
	var b strings.Builder
	b.WriteString(codePrefix)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
