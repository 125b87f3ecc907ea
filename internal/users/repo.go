package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Repository exposes the local mirror of identity accounts and their loyalty balance.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a user mirror row.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}
	if user.Role == "" {
		user.Role = enums.UserRoleUser
	}
	if !user.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return &user, nil
}

// FindRole returns the role recorded for the user.
func (r *Repository) FindRole(ctx context.Context, id uuid.UUID) (enums.UserRole, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// FindEmail returns the contact address used for notifications.
func (r *Repository) FindEmail(ctx context.Context, id uuid.UUID) (string, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// AddPoints credits the loyalty balance.
func (r *Repository) AddPoints(ctx context.Context, id uuid.UUID, points int) error {
	if points <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("points", gorm.Expr("points + ?", points))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "add points")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

// DeductPoints debits the loyalty balance only if it covers the amount.
func (r *Repository) DeductPoints(ctx context.Context, id uuid.UUID, points int) error {
	if points <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND points >= ?", id, points).
		UpdateColumn("points", gorm.Expr("points - ?", points))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deduct points")
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "not enough points").
		WithDetails(map[string]any{"requested": points})
}
