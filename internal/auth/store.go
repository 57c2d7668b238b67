package auth

import "context"

// IdentityStore owns identity rows, their password hashes, token-version
// counters and block flags.
type IdentityStore interface {
	Create(ctx context.Context, identity *Identity) error
	FindByID(ctx context.Context, id string) (Identity, error)
	FindByLoginOrEmail(ctx context.Context, identifier string) (Identity, error)
	List(ctx context.Context) ([]Identity, error)
	Update(ctx context.Context, identity *Identity) error
	Delete(ctx context.Context, id string) error

	// UpdatePassword stores a new hash, records password_changed_at and bumps
	// the token version in the same statement: a password change invalidates
	// every session issued against the old password.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// IncrementTokenVersion bumps the revocation counter, invalidating every
	// outstanding token for the identity.
	IncrementTokenVersion(ctx context.Context, id string) error

	// SetBlocked flips the block flag and bumps the token version in the same
	// statement. A block that leaves old tokens live, or a revocation without
	// the block, is a correctness violation. Returns the affected row count.
	SetBlocked(ctx context.Context, id string, blocked bool) (int64, error)
}

// ResetTokenStore owns password reset token rows.
type ResetTokenStore interface {
	Create(ctx context.Context, token *ResetToken) error
	Find(ctx context.Context, id string) (ResetToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByIdentity(ctx context.Context, identityID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
