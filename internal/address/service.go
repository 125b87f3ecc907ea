package address

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CreateInput is the payload for saving a new address.
type CreateInput struct {
	FullName   string `json:"fullName" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postalCode"`
}

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	FindOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	addr := &models.Address{
		UserID:     userID,
		FullName:   strings.TrimSpace(input.FullName),
		Phone:      strings.TrimSpace(input.Phone),
		Street:     strings.TrimSpace(input.Street),
		City:       strings.TrimSpace(input.City),
		Country:    strings.TrimSpace(input.Country),
		PostalCode: strings.TrimSpace(input.PostalCode),
	}
	if err := addr.Snapshot().Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if err := s.repo.Create(ctx, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) FindOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	return s.repo.FindOwned(ctx, userID, addressID)
}
