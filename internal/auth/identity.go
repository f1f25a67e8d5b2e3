package auth

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Identity is the authenticated principal for one request. It is built
// fresh for every request and never stored.
type Identity struct {
	Principal string
	Roles     mapset.Set[Role]
	Anonymous bool
}

// NewIdentity returns an authenticated identity with no roles.
func NewIdentity(principal string) *Identity {
	return &Identity{
		Principal: principal,
		Roles:     mapset.NewSet[Role](),
	}
}

// AnonymousIdentity returns the identity used when no credentials were sent.
func AnonymousIdentity() *Identity {
	return &Identity{
		Roles:     mapset.NewSet[Role](),
		Anonymous: true,
	}
}

// HasRole reports whether the identity holds role.
func (i *Identity) HasRole(role Role) bool {
	if i == nil || i.Roles == nil {
		return false
	}
	return i.Roles.Contains(role)
}
