package auth

// Role values stored on the employee record. The admin surface is gated on
// RoleAdmin; everything else is available to any authenticated employee.
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// ValidRole reports whether the given string is a known role.
func ValidRole(role string) bool {
	return role == RoleEmployee || role == RoleAdmin
}
