package auth

// HasRole returns true if the principal holds role, with any target.
// A nil principal holds no roles.
func HasRole(principal *User, role Role) bool {
	if principal == nil {
		return false
	}
	for _, a := range principal.Roles {
		if a.Role() == role {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(principal, RoleAdmin).
func IsAdmin(principal *User) bool {
	return HasRole(principal, RoleAdmin)
}

// CanModifyUser returns true if the principal is the target user or an admin.
func CanModifyUser(principal *User, targetUserID int64) bool {
	if principal == nil {
		return false
	}
	return principal.ID == targetUserID || IsAdmin(principal)
}

// CanManageFranchise returns true for admins and for franchisees scoped to
// exactly this franchise. Diner carries no franchise capability.
func CanManageFranchise(principal *User, franchiseID int64) bool {
	if principal == nil {
		return false
	}
	if IsAdmin(principal) {
		return true
	}
	for _, a := range principal.Roles {
		if a.Role() != RoleFranchisee {
			continue
		}
		if id, ok := a.Object(); ok && id == franchiseID {
			return true
		}
	}
	return false
}

// RequireAdmin returns ErrUnauthorized without a principal and ErrForbidden
// for non-admins.
func RequireAdmin(principal *User) error {
	if principal == nil {
		return ErrUnauthorized
	}
	if !IsAdmin(principal) {
		return ErrForbidden
	}
	return nil
}

// RequireUserAccess is the error-returning form of CanModifyUser.
func RequireUserAccess(principal *User, targetUserID int64) error {
	if principal == nil {
		return ErrUnauthorized
	}
	if !CanModifyUser(principal, targetUserID) {
		return ErrForbidden
	}
	return nil
}

// RequireFranchiseAccess is the error-returning form of CanManageFranchise.
func RequireFranchiseAccess(principal *User, franchiseID int64) error {
	if principal == nil {
		return ErrUnauthorized
	}
	if !CanManageFranchise(principal, franchiseID) {
		return ErrForbidden
	}
	return nil
}
