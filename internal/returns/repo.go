package returns

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var activeStatuses = []enums.ReturnStatus{enums.ReturnStatusPending, enums.ReturnStatusApproved}

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

// Create returns the raw error so the active-request unique index can be detected.
func (r *Repository) Create(ctx context.Context, req *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	return &req, nil
}

// HasActive reports whether (order, sku) already has a pending or approved request.
func (r *Repository) HasActive(ctx context.Context, orderID, skuID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("order_id = ? AND sku_id = ? AND status IN ?", orderID, skuID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active return requests")
	}
	return count > 0, nil
}

type ListFilter struct {
	UserID uuid.UUID
	Status enums.ReturnStatus
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.ReturnRequest, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if filter.UserID != uuid.Nil {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	var rows []models.ReturnRequest
	if err := query.Limit(100).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list return requests")
	}
	return rows, nil
}

// Update applies updates only while the request is still in from.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, from enums.ReturnStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update return request")
	}
	return res.RowsAffected == 1, nil
}
