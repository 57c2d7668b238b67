package auth

import "time"

// Identity is a principal able to authenticate against the service.
type Identity struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`

	// PasswordHash never leaves the auth package boundary.
	PasswordHash string `json:"-"`

	// TokenVersion only ever increases. Every issued token embeds a snapshot
	// of it; bumping the live value is what revokes outstanding sessions.
	TokenVersion int `json:"-"`

	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
}

// ResetToken is a persisted one-time password reset grant. The numeric code is
// stored only as a bcrypt hash; the plaintext exists once, in the compound code
// handed to the delivery channel.
type ResetToken struct {
	ID         string
	IdentityID string
	CodeHash   string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Principal is an authenticated identity with its resolved permission set,
// bound to the request context by the authentication gateway.
type Principal struct {
	Identity    Identity
	Permissions map[Permission]struct{}
}

// NewPrincipal resolves the permission set for the identity's role.
func NewPrincipal(identity Identity) Principal {
	perms := PermissionsFor(identity.Role)
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Principal{Identity: identity, Permissions: set}
}

// HasPermission reports whether the principal carries the given atom.
func (p Principal) HasPermission(perm Permission) bool {
	_, ok := p.Permissions[perm]
	return ok
}

// HasAuthority reports whether the principal's role matches the given role
// label, for endpoints gated on "any administrator" rather than an atom.
func (p Principal) HasAuthority(role Role) bool {
	return p.Identity.Role == role
}
