package auth

// Actor is the staff member performing a moderation action, resolved by the
// command shell before the core is invoked.
type Actor struct {
	ID      string
	Tag     string
	RoleIDs []string
}

// HasRole reports whether the actor holds the given platform role.
func (a Actor) HasRole(roleID string) bool {
	for _, id := range a.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Checker resolves permission keys against configured role lists. An actor
// passes a check when any of their roles appears in the list for the key; an
// empty or missing list denies everyone.
type Checker struct {
	grants map[string][]string
}

// NewChecker builds a checker from a permission-key to role-ID-list mapping.
func NewChecker(grants map[string][]string) Checker {
	copied := make(map[string][]string, len(grants))
	for k, v := range grants {
		copied[k] = append([]string(nil), v...)
	}
	return Checker{grants: copied}
}

// Allow reports whether the actor holds the permission.
func (c Checker) Allow(actor Actor, perm string) bool {
	for _, roleID := range c.grants[perm] {
		if actor.HasRole(roleID) {
			return true
		}
	}
	return false
}

// Require returns ErrUnauthorized unless the actor holds the permission.
func (c Checker) Require(actor Actor, perm string) error {
	if !c.Allow(actor, perm) {
		return ErrUnauthorized
	}
	return nil
}
