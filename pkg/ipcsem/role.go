package ipcsem

import "fmt"

// Role - side a process plays for a shared semaphore.
type Role uint8

const (
	// Owner supplied the backing resource, initializes it and destroys it.
	Owner Role = iota
	// Attacher maps an already initialized resource and never writes its layout.
	Attacher
)

// String - returns role name.
func (r Role) String() string {
	switch r {
	case Owner:
		return "owner"
	case Attacher:
		return "attacher"
	}

	return fmt.Sprintf("role(%d)", uint8(r))
}

// Valid - reports whether r is a known role.
func (r Role) Valid() bool {
	return r == Owner || r == Attacher
}

// ParseRole - parses role name.
func ParseRole(s string) (Role, error) {
	switch s {
	case "owner":
		return Owner, nil
	case "attacher":
		return Attacher, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}
