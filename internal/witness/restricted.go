// restricted.go - Role-restricted witness bridge.

package witness

// Restricted is the witness bridge handed to a party that must never see
// another party's private records. Both operations fail unconditionally with
// RoleViolationError, enforcing the privacy boundary at the capability level
// rather than by convention.
type Restricted struct {
	Role string
}

// NewRestricted creates a bridge for a foreign role.
func NewRestricted(role string) *Restricted {
	return &Restricted{Role: role}
}

// Store always fails with RoleViolationError.
func (r *Restricted) Store(CommitmentKey, PrivateRecord) error {
	return &RoleViolationError{Role: r.Role, Op: "store"}
}

// Load always fails with RoleViolationError.
func (r *Restricted) Load(CommitmentKey) (PrivateRecord, PublicAux, error) {
	return PrivateRecord{}, PublicAux{}, &RoleViolationError{Role: r.Role, Op: "load"}
}
