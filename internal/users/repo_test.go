package users

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestRepositoryRoleAndPoints(t *testing.T) {
	repo := NewRepository(dbtest.NewSQLite(t, &models.User{}))
	ctx := context.Background()

	courier := &models.User{Email: "courier@example.com", FullName: "Courier", Role: enums.UserRoleDelivery}
	if err := repo.Create(ctx, courier); err != nil {
		t.Fatalf("create: %v", err)
	}

	role, err := repo.FindRole(ctx, courier.ID)
	if err != nil || role != enums.UserRoleDelivery {
		t.Fatalf("expected delivery role, got %q (%v)", role, err)
	}

	if err := repo.AddPoints(ctx, courier.ID, 7); err != nil {
		t.Fatalf("add points: %v", err)
	}
	if err := repo.DeductPoints(ctx, courier.ID, 8); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for overdraft, got %v", err)
	}
	if err := repo.DeductPoints(ctx, courier.ID, 5); err != nil {
		t.Fatalf("deduct points: %v", err)
	}

	user, err := repo.FindByID(ctx, courier.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user.Points != 2 {
		t.Fatalf("expected 2 points, got %d", user.Points)
	}
}

func TestRepositoryUnknownUser(t *testing.T) {
	repo := NewRepository(dbtest.NewSQLite(t, &models.User{}))
	ctx := context.Background()

	if _, err := repo.FindRole(ctx, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.DeductPoints(ctx, uuid.New(), 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Create(ctx, &models.User{Email: "x@example.com", Role: "owner"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected invalid role rejection, got %v", err)
	}
}
