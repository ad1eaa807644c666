package auth

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role represents a capability tier a user can hold.
type Role string

const (
	// RoleDiner places and views its own orders. No elevated capability.
	RoleDiner Role = "diner"

	// RoleAdmin manages users, the menu and every franchise.
	RoleAdmin Role = "admin"

	// RoleFranchisee manages the stores of one franchise. Always scoped to
	// a franchise id.
	RoleFranchisee Role = "franchisee"
)

// ValidRoles is the set of roles a user account can hold.
var ValidRoles = []Role{RoleDiner, RoleAdmin, RoleFranchisee}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// RoleAssignment grants a role to a user, optionally scoped to a franchise.
//
// The zero value is not a valid assignment. Use DinerRole, AdminRole or
// FranchiseeRole; a franchisee assignment always carries its franchise id and
// the others never do.
type RoleAssignment struct {
	role      Role
	objectID  int64
	hasObject bool
}

// DinerRole returns an unscoped diner assignment.
func DinerRole() RoleAssignment { return RoleAssignment{role: RoleDiner} }

// AdminRole returns an unscoped admin assignment.
func AdminRole() RoleAssignment { return RoleAssignment{role: RoleAdmin} }

// FranchiseeRole returns a franchisee assignment for one franchise.
func FranchiseeRole(franchiseID int64) RoleAssignment {
	return RoleAssignment{role: RoleFranchisee, objectID: franchiseID, hasObject: true}
}

// NewRoleAssignment builds an assignment from its stored form. objectID must
// be non-nil exactly when role is RoleFranchisee.
func NewRoleAssignment(role Role, objectID *int64) (RoleAssignment, error) {
	switch role {
	case RoleDiner, RoleAdmin:
		if objectID != nil {
			return RoleAssignment{}, fmt.Errorf("%w: %s role cannot target an object", ErrInvalidRole, role)
		}
		return RoleAssignment{role: role}, nil
	case RoleFranchisee:
		if objectID == nil {
			return RoleAssignment{}, fmt.Errorf("%w: franchisee role requires a franchise id", ErrInvalidRole)
		}
		return FranchiseeRole(*objectID), nil
	default:
		return RoleAssignment{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}

// Role returns the assigned role.
func (a RoleAssignment) Role() Role { return a.role }

// Object returns the scoped franchise id, if any.
func (a RoleAssignment) Object() (int64, bool) { return a.objectID, a.hasObject }

// ObjectPtr returns the scoped id as a nullable column value.
func (a RoleAssignment) ObjectPtr() *int64 {
	if !a.hasObject {
		return nil
	}
	id := a.objectID
	return &id
}

func (a RoleAssignment) String() string {
	if a.hasObject {
		return fmt.Sprintf("%s(%d)", a.role, a.objectID)
	}
	return string(a.role)
}

type roleAssignmentJSON struct {
	Role     Role   `json:"role"`
	ObjectID *int64 `json:"object_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a RoleAssignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(roleAssignmentJSON{Role: a.role, ObjectID: a.ObjectPtr()})
}

// UnmarshalJSON implements json.Unmarshaler and rejects malformed variants.
func (a *RoleAssignment) UnmarshalJSON(data []byte) error {
	var raw roleAssignmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewRoleAssignment(raw.Role, raw.ObjectID)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// User is an account as seen by the rest of the service: identity plus
// resolved role assignments. The password digest never leaves the store.
//
// A *User is also the principal of an authenticated request.
type User struct {
	ID    int64            `json:"id"`
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Roles []RoleAssignment `json:"roles"`
}

// Sentinel errors for auth operations.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role assignment")
)
