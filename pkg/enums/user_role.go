package enums

import "slices"

// UserRole is the role claim issued by the identity provider.
type UserRole string

const (
	UserRoleUser     UserRole = "user"
	UserRoleAdmin    UserRole = "admin"
	UserRoleDelivery UserRole = "delivery"
)

var validUserRoles = []UserRole{
	UserRoleUser,
	UserRoleAdmin,
	UserRoleDelivery,
}

// String implements fmt.Stringer.
func (s UserRole) String() string {
	return string(s)
}

// IsValid reports whether the value is a known UserRole.
func (s UserRole) IsValid() bool {
	return slices.Contains(validUserRoles, s)
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", value, validUserRoles)
}
