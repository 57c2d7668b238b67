package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"tickettrail.org/internal/ids"
)

const (
	resetTokenTTL   = 10 * time.Minute
	resetCodeLength = 8
)

// ResetService issues and redeems one-time password reset codes. A code is
// delivered out of band as the compound string "{tokenId}.{code}"; only a
// bcrypt hash of the code ever reaches the store.
type ResetService struct {
	identities IdentityStore
	tokens     ResetTokenStore
	now        func() time.Time
	ttl        time.Duration

	// deliver hands the compound code to the delivery channel (mail in
	// production, log sink in development). Nil means drop silently.
	deliver func(identity Identity, compound string)
}

// ResetOption configures ResetService.
type ResetOption func(*ResetService)

// WithResetTTL overrides the reset token lifetime.
func WithResetTTL(ttl time.Duration) ResetOption {
	return func(s *ResetService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithResetClock overrides the time source.
func WithResetClock(fn func() time.Time) ResetOption {
	return func(s *ResetService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithDelivery installs the out-of-band delivery hook.
func WithDelivery(fn func(identity Identity, compound string)) ResetOption {
	return func(s *ResetService) {
		s.deliver = fn
	}
}

// NewResetService constructs a ResetService.
func NewResetService(identities IdentityStore, tokens ResetTokenStore, opts ...ResetOption) (*ResetService, error) {
	if identities == nil || tokens == nil {
		return nil, errors.New("auth: identity and reset token stores are required")
	}
	s := &ResetService{
		identities: identities,
		tokens:     tokens,
		now:        time.Now,
		ttl:        resetTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Request starts a reset flow for the identifier (login or email). An unknown
// identifier is NOT an error: the external result is identical whether or not
// the account exists, so the endpoint cannot be used to enumerate accounts.
func (s *ResetService) Request(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil
	}
	identity, err := s.identities.FindByLoginOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	code, err := numericCode(resetCodeLength)
	if err != nil {
		return err
	}
	codeHash, err := HashPassword(code)
	if err != nil {
		return err
	}
	token := ResetToken{
		ID:         ids.New(),
		IdentityID: identity.ID,
		CodeHash:   codeHash,
		ExpiresAt:  s.now().UTC().Add(s.ttl),
	}
	if err := s.tokens.Create(ctx, &token); err != nil {
		return err
	}
	if s.deliver != nil {
		s.deliver(identity, token.ID+"."+code)
	}
	return nil
}

// Redeem exchanges a compound code for a new password. The compound format is
// "{tokenId}.{code}", split strictly on the first separator. The token is
// single-use: the winner of a concurrent redemption deletes the row, the loser
// sees ErrResetTokenInvalid.
func (s *ResetService) Redeem(ctx context.Context, compound, newPassword string) error {
	tokenID, code, err := splitCompoundCode(compound)
	if err != nil {
		return ErrResetTokenInvalid
	}
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	token, err := s.tokens.Find(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	if s.now().After(token.ExpiresAt) {
		// Expired tokens must not linger; a later retry reads "not found".
		if err := s.tokens.Delete(ctx, token.ID); err != nil {
			return err
		}
		return ErrResetTokenExpired
	}
	if err := VerifyPassword(token.CodeHash, code); err != nil {
		// Wrong code keeps the token so the user can retry within the window.
		return ErrResetTokenInvalid
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePassword(ctx, token.IdentityID, hash); err != nil {
		return err
	}
	return s.tokens.Delete(ctx, token.ID)
}

// ChangePassword replaces the password of an authenticated identity after
// checking the old one, then invalidates all outstanding reset tokens: a
// password change supersedes any in-flight reset flow.
func (s *ResetService) ChangePassword(ctx context.Context, identityID, oldPassword, newPassword string) error {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(identity.PasswordHash, oldPassword); err != nil {
		return ErrPasswordMismatch
	}
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return err
	}
	return s.tokens.DeleteByIdentity(ctx, identity.ID)
}

// PurgeExpired deletes every reset token past its expiry. Redeem already
// deletes expired tokens it happens to touch; this sweeps the ones nobody
// ever tried. Meant to run periodically from the process hosting the service.
func (s *ResetService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

// splitCompoundCode splits "{tokenId}.{code}" on the first separator. Both
// parts must be non-empty; anything else is a malformed compound code.
func splitCompoundCode(compound string) (tokenID, code string, err error) {
	parts := strings.SplitN(strings.TrimSpace(compound), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid compound code format")
	}
	return parts[0], parts[1], nil
}

// numericCode generates a fixed-length random decimal code.
func numericCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
