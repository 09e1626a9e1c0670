// errors.go - Witness store error types.

package witness

import "fmt"

// MissingRecordError is returned by Load when no record exists for a key.
// The message tells the caller how to recover.
type MissingRecordError struct {
	Key CommitmentKey
}

func (e *MissingRecordError) Error() string {
	return fmt.Sprintf("witness: no private record for commitment key %s; register this identity first", e.Key)
}

// RoleViolationError is returned by a restricted witness bridge for every
// operation. A participant's witness module only ever sees its own private
// data; any access through a foreign role's bridge is a hard failure.
type RoleViolationError struct {
	Role string
	Op   string
}

func (e *RoleViolationError) Error() string {
	return fmt.Sprintf("witness: role %q may not %s private records of another party", e.Role, e.Op)
}
