package access

import "fmt"

// Roles a user can hold. A principal carries exactly one.
const (
	RoleAdmin  = "admin"
	RoleBuyer  = "buyer"
	RoleSolver = "solver"
)

// ValidRole reports whether r names a known role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleBuyer, RoleSolver:
		return true
	}
	return false
}

// Principal is the verified identity an operation runs as. Tokens are
// issued elsewhere; by the time a Principal exists the caller is
// authenticated.
type Principal struct {
	ID   string
	Role string
	Name string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Require fails with a ForbiddenError unless the principal holds one of
// the given roles. Admin is never implied; list it when it qualifies.
func Require(p Principal, roles ...string) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return ForbiddenError{Reason: fmt.Sprintf("role %s not permitted", p.Role)}
}

// ForbiddenError indicates the principal may not perform the operation.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return e.Reason
}

// InvalidStateError indicates the entity is not in a state that permits
// the operation.
type InvalidStateError struct {
	Entity string
	State  string
	Op     string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s in status %s does not allow %s", e.Entity, e.State, e.Op)
}

// ConflictError indicates a uniqueness rule was violated.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return e.Reason }

// ValidationError indicates malformed or missing input.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string { return e.Reason }
