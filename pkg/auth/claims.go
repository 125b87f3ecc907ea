package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// AccessTokenPayload is what MintAccessToken signs. Production tokens come from the identity
// provider; minting exists for tests and local tooling.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims carries the user in the standard "sub" claim and the storefront role next to it.
type AccessTokenClaims struct {
	Email string         `json:"email,omitempty"`
	Role  enums.UserRole `json:"role"`
	jwt.RegisteredClaims

	userID uuid.UUID
}

func (c *AccessTokenClaims) UserID() uuid.UUID { return c.userID }

// Actor converts verified claims into the caller used by the services.
func (c *AccessTokenClaims) Actor() types.Actor {
	return types.Actor{UserID: c.userID, Role: c.Role}
}
