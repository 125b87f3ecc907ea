package refunds

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, refund *models.RefundRequest) error {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund request")
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	var refund models.RefundRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund request")
	}
	return &refund, nil
}

// HasActive reports whether the order already has a pending or approved refund.
func (r *Repository) HasActive(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.RefundStatus{enums.RefundStatusPending, enums.RefundStatusApproved}).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active refunds")
	}
	return count > 0, nil
}

type ListFilter struct {
	UserID uuid.UUID
	Status enums.RefundStatus
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.RefundRequest, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if filter.UserID != uuid.Nil {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	var rows []models.RefundRequest
	if err := query.Limit(100).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refund requests")
	}
	return rows, nil
}

// Update applies updates only while the refund is still in from.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, from enums.RefundStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update refund request")
	}
	return res.RowsAffected == 1, nil
}
