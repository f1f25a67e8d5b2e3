package auth

// Decision is the outcome of an authorisation check.
type Decision int

const (
	// Allow grants the operation.
	Allow Decision = iota
	// DenyUnauthenticated rejects a caller with no authenticated identity.
	DenyUnauthenticated
	// DenyForbidden rejects an authenticated caller lacking every required role.
	DenyForbidden
)

// String returns the decision name used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Err maps a deny decision to its sentinel error, or nil for Allow.
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case DenyUnauthenticated:
		return ErrUnauthenticated
	default:
		return ErrForbidden
	}
}

// Authorize decides whether identity may perform an operation requiring
// any one of required. No required roles means the operation is public.
// Authorize performs no I/O and never modifies identity.
func Authorize(identity *Identity, required ...Role) Decision {
	if len(required) == 0 {
		return Allow
	}
	if identity == nil || identity.Anonymous {
		return DenyUnauthenticated
	}
	for _, r := range required {
		if identity.HasRole(r) {
			return Allow
		}
	}
	return DenyForbidden
}
