package auth

// UserRole is the user's role
type UserRole = string

const (
	// RoleGuest can browse, book, and review (default role)
	RoleGuest UserRole = "guest"
	// RoleHost manages property and room listings
	RoleHost UserRole = "host"
	// RoleAdmin has full platform access
	RoleAdmin UserRole = "admin"
)

// PublicRegistrationRoles are the roles self-service registration may
// assign. Anything else is silently downgraded to guest.
var PublicRegistrationRoles = []UserRole{RoleGuest, RoleHost}

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleAtLeast checks if role meets the minimum required level
func RoleAtLeast(role, minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleGuest: 0,
		RoleHost:  1,
		RoleAdmin: 2,
	}

	currentLevel, exists := roleHierarchy[role]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{RoleGuest, RoleHost, RoleAdmin}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// SanitizeRegistrationRole clamps a requested role to the public
// registration allow list.
func SanitizeRegistrationRole(requested UserRole) UserRole {
	for _, allowed := range PublicRegistrationRoles {
		if requested == allowed {
			return requested
		}
	}
	return RoleGuest
}

// Permissions maps a role to its set of permission strings. It is a plain
// value so deployments can pass their own table into the authorization gate
// instead of editing code.
type Permissions map[UserRole][]string

// DefaultPermissions returns the platform's builtin role → capability table.
func DefaultPermissions() Permissions {
	return Permissions{
		RoleAdmin: {
			"users.create", "users.read", "users.update", "users.delete",
			"properties.create", "properties.read", "properties.update", "properties.delete",
			"bookings.create", "bookings.read", "bookings.update", "bookings.delete",
			"reviews.create", "reviews.read", "reviews.update", "reviews.delete",
			"reports.view", "reports.generate", "logout",
		},
		RoleHost: {
			"properties.create", "properties.read", "properties.update", "properties.delete",
			"bookings.read", "bookings.update",
			"reviews.read",
			"reports.view", "logout",
		},
		RoleGuest: {
			"properties.read", "search.properties", "update.profile", "logout",
			"bookings.create", "bookings.read", "bookings.update", "bookings.delete",
			"reviews.create", "reviews.read", "reviews.update", "reviews.delete",
		},
	}
}

// ForRole returns the permission set for a role; unknown roles get none.
func (p Permissions) ForRole(role UserRole) []string {
	return p[role]
}

// HasAll reports whether role holds every permission in required.
func (p Permissions) HasAll(role UserRole, required ...string) bool {
	granted := map[string]struct{}{}
	for _, perm := range p[role] {
		granted[perm] = struct{}{}
	}

	for _, perm := range required {
		if _, ok := granted[perm]; !ok {
			return false
		}
	}
	return true
}
